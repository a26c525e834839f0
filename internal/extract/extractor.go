package extract

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/local/airenamer/internal/config"
	"github.com/local/airenamer/internal/filetype"
	"github.com/local/airenamer/internal/imagerender"
	mpkg "github.com/local/airenamer/internal/metrics"
)

// Extractor runs the content-extraction fallback chain for one input file:
// text layer, alternate reader, first-page render, then OCR when the text
// yield suggests a scanned document.
type Extractor struct {
	cfg    config.ExtractionConfig
	runner Runner

	// stage hooks, swappable in tests
	textLayer  func(path string) stageResult
	altReader  func(path string) stageResult
	renderPage func(path string, page int) ([]byte, error)
	ocrPages   func(ctx context.Context, path string) string
}

// New creates an extractor with the given thresholds.
func New(cfg config.ExtractionConfig) *Extractor {
	e := &Extractor{cfg: cfg, runner: execRunner{}}
	e.textLayer = e.pdfTextLayer
	e.altReader = e.pdfAltReader
	e.renderPage = func(path string, page int) ([]byte, error) {
		img, _, _, err := imagerender.RenderPageToJPEG(path, page, cfg.RenderDPI, cfg.JPEGQuality)
		return img, err
	}
	e.ocrPages = e.ocrPDF
	return e
}

// Extract produces the text and optional first-page image for a document.
// Terminal failures (password-protected, structurally broken) surface in
// Result.Err; degraded stages (no renderer, no OCR engine) just lower the
// output quality.
func (e *Extractor) Extract(ctx context.Context, path string, kind filetype.Kind) Result {
	switch kind {
	case filetype.KindPDF:
		return e.extractPDF(ctx, path)
	case filetype.KindImage:
		return e.extractImage(ctx, path)
	default:
		return Result{Err: fmt.Errorf("unsupported file kind: %s", kind)}
	}
}

func (e *Extractor) extractPDF(ctx context.Context, path string) Result {
	st := e.textLayer(path)
	if st.status == stageTerminal {
		mpkg.IncExtractionStage("terminal")
		return Result{Err: st.err}
	}

	text := st.text
	stage := "text_layer"
	if st.status == stageInsufficient {
		alt := e.altReader(path)
		if alt.status == stageTerminal {
			mpkg.IncExtractionStage("terminal")
			return Result{Err: alt.err}
		}
		text = alt.text
		stage = "alt_reader"
	}

	// First-page image for vision-capable backends; failure to render is
	// non-fatal and simply yields no image.
	var image []byte
	if img, err := e.renderPage(path, 1); err == nil {
		image = img
	} else {
		log.Debug().Err(err).Str("file", path).Msg("first-page render unavailable")
	}

	// Short text usually means a scanned document.
	if len(text) < e.cfg.MinContentChars {
		log.Debug().
			Int("chars", len(text)).
			Int("threshold", e.cfg.MinContentChars).
			Str("file", path).
			Msg("text below content threshold, attempting OCR")
		if ocrText := e.ocrPages(ctx, path); len(ocrText) > len(text) {
			text = ocrText
			stage = "ocr"
		}
	}

	mpkg.IncExtractionStage(stage)
	return Result{Text: text, ImageJPEG: image}
}

func (e *Extractor) extractImage(ctx context.Context, path string) Result {
	raw, err := os.ReadFile(path)
	if err != nil {
		mpkg.IncExtractionStage("terminal")
		return Result{Err: fmt.Errorf("read image: %w", err)}
	}

	// Normalize the payload to JPEG for the vision backends. A format no
	// registered decoder handles still goes to OCR as raw bytes, but is not
	// attached to the AI request: the request labels its payload image/jpeg
	// and must never carry anything else.
	var payload []byte
	if img, err := imagerender.DecodeImage(raw); err == nil {
		if jpegBytes, err := imagerender.EncodeJPEG(img, e.cfg.JPEGQuality); err == nil {
			payload = jpegBytes
		}
	} else {
		log.Debug().Err(err).Str("file", path).Msg("image not convertible to JPEG, omitting vision payload")
	}

	ocrInput := payload
	if ocrInput == nil {
		ocrInput = raw
	}
	text, _ := e.ocrImageBytes(ctx, ocrInput)
	mpkg.IncExtractionStage("image_ocr")
	return Result{Text: text, ImageJPEG: payload}
}
