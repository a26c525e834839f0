package extract

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/local/airenamer/internal/config"
	"github.com/local/airenamer/internal/filetype"
)

func testConfig() config.ExtractionConfig {
	return config.ExtractionConfig{
		MinContentChars: 100,
		OCRMaxPages:     3,
		RenderDPI:       72,
		JPEGQuality:     70,
		OCRLanguage:     "eng",
		TesseractBin:    "tesseract",
		OCRTimeout:      5 * time.Second,
	}
}

// scriptedRunner returns canned output per invocation, keyed by args.
type scriptedRunner struct {
	// osd is returned for --psm 0 calls, text for plain OCR calls
	osd     string
	text    string
	err     error
	calls   [][]string
}

func (r *scriptedRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return nil, nil, r.err
	}
	for _, a := range args {
		if a == "--psm" {
			return []byte(r.osd), nil, nil
		}
	}
	return []byte(r.text), nil, nil
}

func stubExtractor(cfg config.ExtractionConfig, runner Runner) *Extractor {
	e := New(cfg)
	if runner != nil {
		e.runner = runner
	}
	// stages are stubbed per-test; default to nothing useful
	e.textLayer = func(string) stageResult { return stageResult{status: stageInsufficient} }
	e.altReader = func(string) stageResult { return stageResult{status: stageInsufficient} }
	e.renderPage = func(string, int) ([]byte, error) { return nil, errors.New("no renderer") }
	e.ocrPages = func(context.Context, string) string { return "" }
	return e
}

func jpegFixture(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestPrimaryTextLayerWins(t *testing.T) {
	e := stubExtractor(testConfig(), nil)
	e.textLayer = func(string) stageResult {
		return stageText("plenty of text from the primary reader, long enough to clear any threshold when repeated a few more times to be safe and sound")
	}
	e.altReader = func(string) stageResult {
		t.Fatal("alternate reader must not run when primary produced text")
		return stageResult{}
	}

	res := e.Extract(context.Background(), "doc.pdf", filetype.KindPDF)
	if res.Terminal() {
		t.Fatalf("unexpected terminal error: %v", res.Err)
	}
	if res.Text == "" {
		t.Fatal("expected primary text")
	}
}

func TestSecondaryReaderUsedWhenPrimaryEmpty(t *testing.T) {
	e := stubExtractor(testConfig(), nil)
	e.textLayer = func(string) stageResult { return stageText("") }
	e.altReader = func(string) stageResult {
		return stageText("recovered by the alternate content-stream reader with enough characters to stay above the scanned-document threshold for this configuration")
	}

	res := e.Extract(context.Background(), "doc.pdf", filetype.KindPDF)
	if res.Terminal() {
		t.Fatalf("unexpected terminal error: %v", res.Err)
	}
	if res.Text == "" || res.Text[:9] != "recovered" {
		t.Fatalf("expected alternate reader text, got %q", res.Text)
	}
}

func TestPasswordProtectedIsTerminal(t *testing.T) {
	e := stubExtractor(testConfig(), nil)
	e.textLayer = func(string) stageResult {
		return stageFail(errors.New("document requires a password"))
	}
	e.altReader = func(string) stageResult {
		t.Fatal("no stage may run after a terminal error")
		return stageResult{}
	}
	e.ocrPages = func(context.Context, string) string {
		t.Fatal("no OCR after a terminal error")
		return ""
	}

	res := e.Extract(context.Background(), "locked.pdf", filetype.KindPDF)
	if !res.Terminal() {
		t.Fatal("expected terminal result")
	}
}

func TestAltReaderStructuralErrorIsTerminal(t *testing.T) {
	e := stubExtractor(testConfig(), nil)
	e.textLayer = func(string) stageResult { return stageText("") }
	e.altReader = func(string) stageResult {
		return stageFail(errors.New("pdf structure unreadable: xref broken"))
	}

	res := e.Extract(context.Background(), "broken.pdf", filetype.KindPDF)
	if !res.Terminal() {
		t.Fatal("expected terminal result")
	}
}

func TestOCRReplacesShortTextOnlyWhenLonger(t *testing.T) {
	e := stubExtractor(testConfig(), nil)
	e.textLayer = func(string) stageResult { return stageText("short") }
	e.ocrPages = func(context.Context, string) string {
		return "much longer text recovered from the rendered pages by optical character recognition"
	}

	res := e.Extract(context.Background(), "scan.pdf", filetype.KindPDF)
	if res.Text == "short" {
		t.Fatal("expected OCR text to replace short text layer")
	}

	// OCR yielding less than the existing text must not replace it
	e.ocrPages = func(context.Context, string) string { return "x" }
	res = e.Extract(context.Background(), "scan.pdf", filetype.KindPDF)
	if res.Text != "short" {
		t.Fatalf("expected original text kept, got %q", res.Text)
	}
}

func TestOCRSkippedAboveThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.MinContentChars = 3
	e := stubExtractor(cfg, nil)
	e.textLayer = func(string) stageResult { return stageText("enough") }
	e.ocrPages = func(context.Context, string) string {
		t.Fatal("OCR must not run when the text layer is sufficient")
		return ""
	}

	res := e.Extract(context.Background(), "doc.pdf", filetype.KindPDF)
	if res.Text != "enough" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
}

func TestRenderFailureIsNonFatal(t *testing.T) {
	e := stubExtractor(testConfig(), nil)
	e.textLayer = func(string) stageResult {
		return stageText("document text that is clearly long enough to not need any optical character recognition at all here")
	}

	res := e.Extract(context.Background(), "doc.pdf", filetype.KindPDF)
	if res.Terminal() {
		t.Fatalf("render failure must not be terminal: %v", res.Err)
	}
	if res.ImageJPEG != nil {
		t.Fatal("expected no image payload")
	}
}

func TestImageInputGoesStraightToOCR(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.jpg")
	if err := os.WriteFile(path, jpegFixture(t), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &scriptedRunner{osd: "Rotate: 0\nScript: Latin", text: "RECEIPT TOTAL 42.00"}
	e := stubExtractor(testConfig(), runner)

	res := e.Extract(context.Background(), path, filetype.KindImage)
	if res.Terminal() {
		t.Fatalf("unexpected terminal error: %v", res.Err)
	}
	if res.Text != "RECEIPT TOTAL 42.00" {
		t.Fatalf("unexpected OCR text: %q", res.Text)
	}
	if len(res.ImageJPEG) == 0 {
		t.Fatal("image inputs must always carry the image payload")
	}
}

func TestImageInputGIFNormalizedToJPEG(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewPaletted(image.Rect(0, 0, 8, 8), []color.Color{color.White, color.Black})
	if err := gif.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "scan.gif")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &scriptedRunner{osd: "Rotate: 0", text: "MEMO"}
	e := stubExtractor(testConfig(), runner)

	res := e.Extract(context.Background(), path, filetype.KindImage)
	if res.Terminal() {
		t.Fatalf("unexpected terminal error: %v", res.Err)
	}
	if len(res.ImageJPEG) < 2 || res.ImageJPEG[0] != 0xff || res.ImageJPEG[1] != 0xd8 {
		t.Fatal("payload was not re-encoded as JPEG")
	}
}

func TestImageInputUndecodableOmitsPayload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.img")
	if err := os.WriteFile(path, []byte("not an image at all"), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &scriptedRunner{osd: "Rotate: 0", text: "FAXED PAGE"}
	e := stubExtractor(testConfig(), runner)

	res := e.Extract(context.Background(), path, filetype.KindImage)
	if res.Terminal() {
		t.Fatalf("undecodable image must not be terminal: %v", res.Err)
	}
	if res.ImageJPEG != nil {
		t.Fatal("payload of unknown format must not be attached as JPEG")
	}
	if res.Text != "FAXED PAGE" {
		t.Fatalf("raw bytes must still reach OCR, got %q", res.Text)
	}
}

func TestImageOCRMissingEngineDegrades(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.jpg")
	if err := os.WriteFile(path, jpegFixture(t), 0o644); err != nil {
		t.Fatal(err)
	}

	runner := &scriptedRunner{err: exec.ErrNotFound}
	e := stubExtractor(testConfig(), runner)

	res := e.Extract(context.Background(), path, filetype.KindImage)
	if res.Terminal() {
		t.Fatalf("missing OCR engine must not be terminal: %v", res.Err)
	}
	if res.Text != "" {
		t.Fatalf("expected no text, got %q", res.Text)
	}
	if len(res.ImageJPEG) == 0 {
		t.Fatal("image payload must survive a missing OCR engine")
	}
}

func TestDetectRotationParsesOSD(t *testing.T) {
	runner := &scriptedRunner{osd: "Page number: 0\nOrientation in degrees: 270\nRotate: 90\nOrientation confidence: 12.74\nScript: Latin"}
	e := stubExtractor(testConfig(), runner)

	dir := t.TempDir()
	path := filepath.Join(dir, "page.jpg")
	if err := os.WriteFile(path, jpegFixture(t), 0o644); err != nil {
		t.Fatal(err)
	}

	if deg := e.detectRotation(context.Background(), path); deg != 90 {
		t.Fatalf("expected 90, got %d", deg)
	}
}

func TestUnsupportedKindIsTerminal(t *testing.T) {
	e := stubExtractor(testConfig(), nil)
	res := e.Extract(context.Background(), "file.bin", filetype.KindUnsupported)
	if !res.Terminal() {
		t.Fatal("expected terminal result for unsupported kind")
	}
}
