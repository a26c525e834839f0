package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/local/airenamer/internal/config"
	"github.com/local/airenamer/internal/extract"
	"github.com/local/airenamer/internal/filetype"
	"github.com/local/airenamer/internal/organizer"
	"github.com/local/airenamer/internal/progress"
	"github.com/local/airenamer/internal/sanitize"
)

type stubDetector struct {
	kind filetype.Kind
	err  error
}

func (d *stubDetector) Detect(path string) (*filetype.Info, error) {
	if d.err != nil {
		return nil, d.err
	}
	info := &filetype.Info{Kind: d.kind, MIMEType: "application/pdf", Extension: ".pdf"}
	if d.kind == filetype.KindUnsupported {
		info.Description = "Unsupported file type: text/plain"
	}
	return info, nil
}

type stubExtractor struct {
	result extract.Result
	calls  int
}

func (e *stubExtractor) Extract(ctx context.Context, path string, kind filetype.Kind) extract.Result {
	e.calls++
	return e.result
}

type stubGenerator struct {
	name  string
	calls int
}

func (g *stubGenerator) Generate(ctx context.Context, text string, imageJPEG []byte) string {
	g.calls++
	return g.name
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	var cfg config.Config
	cfg.Paths.InputDir = filepath.Join(root, "in")
	cfg.Paths.ProcessedDir = filepath.Join(root, "out")
	cfg.Paths.UnprocessedDir = filepath.Join(root, "unprocessed")
	cfg.Paths.ProgressFile = filepath.Join(root, ".rename_progress")
	if err := os.MkdirAll(cfg.Paths.InputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	return cfg
}

func writeInput(t *testing.T, cfg config.Config, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(cfg.Paths.InputDir, name)
		if err := os.WriteFile(path, []byte("content of "+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func newTestPipeline(cfg config.Config, deps Dependencies) *Pipeline {
	if deps.Detector == nil {
		deps.Detector = &stubDetector{kind: filetype.KindPDF}
	}
	if deps.Extractor == nil {
		deps.Extractor = &stubExtractor{result: extract.Result{Text: "invoice from acme corp"}}
	}
	if deps.Generator == nil {
		deps.Generator = &stubGenerator{name: "Acme Invoice March"}
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.New(160)
	}
	if deps.Organizer == nil {
		deps.Organizer = organizer.New(3, time.Millisecond)
	}
	if deps.Tracker == nil {
		deps.Tracker = progress.New(cfg.Paths.ProgressFile)
	}
	deps.ErrorLog = zerolog.Nop()
	return New(cfg, deps)
}

func TestRunRenamesAndMoves(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "scan001.pdf")

	p := newTestPipeline(cfg, Dependencies{})
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Processed != 1 || sum.Failed != 0 || sum.Skipped != 0 {
		t.Fatalf("summary = %+v, want 1 processed", sum)
	}

	target := filepath.Join(cfg.Paths.ProcessedDir, "Acme_Invoice_March.pdf")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("renamed file missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.InputDir, "scan001.pdf")); !os.IsNotExist(err) {
		t.Fatalf("source still present, stat err = %v", err)
	}
}

func TestRunSkipsRecordedFiles(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "a.pdf", "b.pdf", "c.pdf")

	tr := progress.New(cfg.Paths.ProgressFile)
	if err := tr.Record("a.pdf"); err != nil {
		t.Fatal(err)
	}
	if err := tr.Record("c.pdf"); err != nil {
		t.Fatal(err)
	}

	ext := &stubExtractor{result: extract.Result{Text: "some text"}}
	p := newTestPipeline(cfg, Dependencies{Extractor: ext})
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Processed != 1 || sum.Skipped != 2 {
		t.Fatalf("summary = %+v, want 1 processed 2 skipped", sum)
	}
	if ext.calls != 1 {
		t.Fatalf("extractor ran %d times, want 1", ext.calls)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "doc.pdf")

	p := newTestPipeline(cfg, Dependencies{})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	// second run shares the progress file, and the directory is empty now
	ext := &stubExtractor{result: extract.Result{Text: "some text"}}
	p2 := newTestPipeline(cfg, Dependencies{Extractor: ext})
	sum, err := p2.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 0 || ext.calls != 0 {
		t.Fatalf("second run touched work: %+v, extractor calls %d", sum, ext.calls)
	}
}

func TestRunCollisionGetsSuffix(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "one.pdf", "two.pdf")

	p := newTestPipeline(cfg, Dependencies{Generator: &stubGenerator{name: "Report"}})
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Processed != 2 {
		t.Fatalf("summary = %+v, want 2 processed", sum)
	}
	for _, want := range []string{"Report.pdf", "Report_1.pdf"} {
		if _, err := os.Stat(filepath.Join(cfg.Paths.ProcessedDir, want)); err != nil {
			t.Fatalf("expected %s: %v", want, err)
		}
	}
}

func TestRunRoutesFailuresToUnprocessed(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "broken.pdf")

	ext := &stubExtractor{result: extract.Result{Err: errors.New("document requires a password")}}
	p := newTestPipeline(cfg, Dependencies{Extractor: ext})
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 || sum.Processed != 0 {
		t.Fatalf("summary = %+v, want 1 failed", sum)
	}

	moved := filepath.Join(cfg.Paths.UnprocessedDir, "broken.pdf")
	if _, err := os.Stat(moved); err != nil {
		t.Fatalf("failed file not routed: %v", err)
	}

	// failures are recorded too, a rerun must not retry them
	data, err := os.ReadFile(cfg.Paths.ProgressFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "broken.pdf\n") {
		t.Fatalf("failed file missing from progress log: %q", data)
	}
}

func TestRunUnsupportedFileFails(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "notes.txt")

	p := newTestPipeline(cfg, Dependencies{Detector: &stubDetector{kind: filetype.KindUnsupported}})
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 {
		t.Fatalf("summary = %+v, want 1 failed", sum)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.UnprocessedDir, "notes.txt")); err != nil {
		t.Fatalf("unsupported file not routed: %v", err)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "a.pdf", "b.pdf", "c.pdf")

	ctx, cancel := context.WithCancel(context.Background())
	ext := &cancellingExtractor{cancel: cancel}
	p := newTestPipeline(cfg, Dependencies{Extractor: ext})
	sum, err := p.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// first file cancels the context, the rest must not start
	if ext.calls != 1 {
		t.Fatalf("extractor ran %d times after cancel, want 1", ext.calls)
	}
	if sum.Processed != 0 {
		t.Fatalf("summary = %+v, want nothing recorded as processed", sum)
	}

	done, err := progress.New(cfg.Paths.ProgressFile).Load(cfg.Paths.InputDir, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 0 {
		t.Fatalf("interrupted file was recorded: %v", done)
	}
}

type cancellingExtractor struct {
	cancel context.CancelFunc
	calls  int
}

func (e *cancellingExtractor) Extract(ctx context.Context, path string, kind filetype.Kind) extract.Result {
	e.calls++
	e.cancel()
	return extract.Result{Text: "text before shutdown"}
}

func TestRunPanicIsContained(t *testing.T) {
	cfg := testConfig(t)
	writeInput(t, cfg, "bad.pdf", "good.pdf")

	p := newTestPipeline(cfg, Dependencies{Extractor: &panickyExtractor{failOn: "bad.pdf"}})
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Failed != 1 || sum.Processed != 1 {
		t.Fatalf("summary = %+v, want 1 failed 1 processed", sum)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.UnprocessedDir, "bad.pdf")); err != nil {
		t.Fatalf("panicking file not routed: %v", err)
	}
}

type panickyExtractor struct {
	failOn string
}

func (e *panickyExtractor) Extract(ctx context.Context, path string, kind filetype.Kind) extract.Result {
	if filepath.Base(path) == e.failOn {
		panic("corrupt structure")
	}
	return extract.Result{Text: "fine document"}
}

func TestRunEmptyDirectorySucceeds(t *testing.T) {
	cfg := testConfig(t)

	p := newTestPipeline(cfg, Dependencies{})
	sum, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run on empty dir: %v", err)
	}
	if sum != (Summary{}) {
		t.Fatalf("summary = %+v, want zero", sum)
	}
}

func TestRunMissingInputDirFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Paths.InputDir = filepath.Join(cfg.Paths.InputDir, "does-not-exist")

	p := newTestPipeline(cfg, Dependencies{})
	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected error for missing input directory")
	}
}
