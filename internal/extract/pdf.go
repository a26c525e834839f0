package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// pdfTextLayer reads the PDF text layer with go-fitz. A password-protected
// document is terminal; any other open failure is treated as insufficient
// so the alternate reader gets its turn.
func (e *Extractor) pdfTextLayer(path string) stageResult {
	doc, err := fitz.New(path)
	if err != nil {
		if errors.Is(err, fitz.ErrNeedsPassword) {
			return stageFail(fmt.Errorf("document requires a password"))
		}
		log.Debug().Err(err).Str("file", path).Msg("go-fitz open failed, deferring to alternate reader")
		return stageResult{status: stageInsufficient}
	}
	defer doc.Close()

	var result strings.Builder
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			log.Warn().Err(err).Int("page", i+1).Msg("failed to extract text from page")
			continue
		}
		if i > 0 {
			result.WriteString("\n\n")
		}
		result.WriteString(text)
	}

	text := strings.TrimSpace(result.String())
	log.Debug().Int("chars", len(text)).Str("file", path).Msg("text layer extracted with go-fitz")

	return stageText(text)
}

// pdfPageCount returns the number of pages, or 0 when the document cannot
// be opened.
func pdfPageCount(path string) int {
	doc, err := fitz.New(path)
	if err != nil {
		return 0
	}
	defer doc.Close()
	return doc.NumPage()
}
