package imagerender

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// RenderPageToJPEG renders a PDF page as JPEG image (in-memory).
// Returns JPEG bytes, width, height, error.
func RenderPageToJPEG(pdfPath string, pageNum, dpi, quality int) ([]byte, int, int, error) {
	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer doc.Close()

	if pageNum < 1 || pageNum > doc.NumPage() {
		return nil, 0, 0, fmt.Errorf("page %d out of range (document has %d pages)", pageNum, doc.NumPage())
	}

	// go-fitz uses 0-based indexing
	img, err := doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	jpegBytes, err := EncodeJPEG(img, quality)
	if err != nil {
		return nil, 0, 0, err
	}

	log.Debug().
		Int("page", pageNum).
		Int("width", width).
		Int("height", height).
		Int("jpeg_size", len(jpegBytes)).
		Int("quality", quality).
		Int("dpi", dpi).
		Msg("rendered page as JPEG")

	return jpegBytes, width, height, nil
}

// Rotate rotates an image clockwise by the given multiple of 90 degrees.
// Used to counter page skew detected by orientation detection before OCR.
func Rotate(src image.Image, degrees int) image.Image {
	degrees = ((degrees % 360) + 360) % 360
	if degrees == 0 {
		return src
	}

	b := src.Bounds()
	var dst *image.RGBA
	switch degrees {
	case 90, 270:
		dst = image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	default: // 180
		dst = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := src.At(x, y)
			sx := x - b.Min.X
			sy := y - b.Min.Y
			switch degrees {
			case 90:
				dst.Set(b.Dy()-1-sy, sx, px)
			case 180:
				dst.Set(b.Dx()-1-sx, b.Dy()-1-sy, px)
			case 270:
				dst.Set(sy, b.Dx()-1-sx, px)
			}
		}
	}
	return dst
}

// DecodeImage decodes JPEG or PNG bytes into an image.
func DecodeImage(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// EncodeJPEG encodes an image as JPEG at the given quality.
func EncodeJPEG(img image.Image, quality int) ([]byte, error) {
	// jpeg.Encode handles RGBA; normalize other color models through a draw pass
	bounds := img.Bounds()
	rgba := image.NewRGBA(bounds)
	draw.Draw(rgba, bounds, img, bounds.Min, draw.Src)

	var buf bytes.Buffer
	opts := &jpeg.Options{Quality: quality}
	if err := jpeg.Encode(&buf, rgba, opts); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeToBase64 converts binary data to base64 string.
func EncodeToBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeFromBase64 converts base64 string back to binary data.
func DecodeFromBase64(b64 string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(b64)
}

// GetImageDimensions extracts dimensions from JPEG bytes.
func GetImageDimensions(jpegBytes []byte) (width, height int, err error) {
	img, err := jpeg.Decode(bytes.NewReader(jpegBytes))
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode JPEG: %w", err)
	}

	bounds := img.Bounds()
	return bounds.Dx(), bounds.Dy(), nil
}
