package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/airenamer/internal/imagerender"
)

var osdRotateRe = regexp.MustCompile(`Rotate:\s*(\d+)`)

// ocrImageBytes runs tesseract over an in-memory image. Page rotation is
// detected first via orientation/script detection and countered so a skewed
// scan does not wreck accuracy. A missing OCR engine degrades output
// instead of failing: ok is false and the caller carries on without text.
func (e *Extractor) ocrImageBytes(ctx context.Context, imgBytes []byte) (text string, ok bool) {
	tmp, err := os.CreateTemp("", "airenamer-ocr-*.jpg")
	if err != nil {
		log.Warn().Err(err).Msg("cannot create OCR temp file")
		return "", false
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(imgBytes); err != nil {
		tmp.Close()
		log.Warn().Err(err).Msg("cannot write OCR temp file")
		return "", false
	}
	tmp.Close()

	if deg := e.detectRotation(ctx, tmpPath); deg != 0 {
		if rotated, err := rotateImageFile(imgBytes, deg, e.cfg.JPEGQuality); err == nil {
			if err := os.WriteFile(tmpPath, rotated, 0o644); err == nil {
				log.Debug().Int("degrees", deg).Msg("counter-rotated page before OCR")
			}
		} else {
			log.Debug().Err(err).Msg("rotation correction skipped")
		}
	}

	cctx, cancel := context.WithTimeout(ctx, e.cfg.OCRTimeout)
	defer cancel()

	out, _, err := e.runner.Run(cctx, e.cfg.TesseractBin, tmpPath, "stdout", "-l", e.cfg.OCRLanguage)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			log.Warn().Str("bin", e.cfg.TesseractBin).Msg("OCR engine not installed, skipping OCR")
			return "", false
		}
		log.Warn().Err(err).Msg("OCR failed")
		return "", false
	}

	return strings.TrimSpace(string(out)), true
}

// detectRotation asks tesseract's OSD mode how far the page is rotated.
// Returns the clockwise correction in degrees, or 0 when detection is
// unavailable or inconclusive.
func (e *Extractor) detectRotation(ctx context.Context, imgPath string) int {
	cctx, cancel := context.WithTimeout(ctx, e.cfg.OCRTimeout)
	defer cancel()

	out, errb, err := e.runner.Run(cctx, e.cfg.TesseractBin, imgPath, "stdout", "--psm", "0")
	if err != nil {
		return 0
	}

	// OSD output lands on stdout or stderr depending on tesseract version
	m := osdRotateRe.FindSubmatch(out)
	if m == nil {
		m = osdRotateRe.FindSubmatch(errb)
	}
	if m == nil {
		return 0
	}

	deg, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0
	}
	return deg % 360
}

// ocrPDF renders the first pages of a PDF and OCRs each one, stitching the
// page texts together.
func (e *Extractor) ocrPDF(ctx context.Context, path string) string {
	pages := pdfPageCount(path)
	if pages == 0 {
		return ""
	}
	if pages > e.cfg.OCRMaxPages {
		pages = e.cfg.OCRMaxPages
	}

	var sb strings.Builder
	for p := 1; p <= pages; p++ {
		img, err := e.renderPage(path, p)
		if err != nil {
			log.Warn().Err(err).Int("page", p).Msg("render for OCR failed")
			continue
		}
		text, ok := e.ocrImageBytes(ctx, img)
		if !ok {
			// engine missing; later pages will not fare better
			break
		}
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}

	return sb.String()
}

func rotateImageFile(imgBytes []byte, degrees, quality int) ([]byte, error) {
	img, err := imagerender.DecodeImage(imgBytes)
	if err != nil {
		return nil, fmt.Errorf("decode for rotation: %w", err)
	}
	return imagerender.EncodeJPEG(imagerender.Rotate(img, degrees), quality)
}
