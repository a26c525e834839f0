package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/local/airenamer/internal/config"
	"github.com/local/airenamer/internal/extract"
	"github.com/local/airenamer/internal/filetype"
	mpkg "github.com/local/airenamer/internal/metrics"
	"github.com/local/airenamer/internal/organizer"
)

// Detector resolves a file's processing class.
type Detector interface {
	Detect(path string) (*filetype.Info, error)
}

// ContentExtractor runs the extraction fallback chain for one file.
type ContentExtractor interface {
	Extract(ctx context.Context, path string, kind filetype.Kind) extract.Result
}

// NameGenerator produces a raw filename candidate; it never fails.
type NameGenerator interface {
	Generate(ctx context.Context, text string, imageJPEG []byte) string
}

// Sanitizer turns a raw candidate into a filesystem-safe name.
type Sanitizer interface {
	Sanitize(raw string) string
}

// Mover relocates files with collision resolution.
type Mover interface {
	Move(source, targetDir, desiredName, extension string) (organizer.MoveOutcome, error)
}

// Recorder persists per-file completion for crash recovery.
type Recorder interface {
	Load(inputDir string, reset bool) (map[string]struct{}, error)
	Record(name string) error
}

// Dependencies wires the pipeline's collaborators.
type Dependencies struct {
	Detector  Detector
	Extractor ContentExtractor
	Generator NameGenerator
	Sanitizer Sanitizer
	Organizer Mover
	Tracker   Recorder
	ErrorLog  zerolog.Logger
}

// Summary reports batch totals. Zero processed files is a success when the
// input directory was simply empty.
type Summary struct {
	Processed int
	Failed    int
	Skipped   int
}

// Pipeline processes one directory of documents sequentially: extract,
// generate a name, sanitize, move, record. Any stage failure routes the
// file to the unprocessed directory and the batch moves on.
type Pipeline struct {
	cfg     config.Config
	deps    Dependencies
	batchID string
}

// New constructs a pipeline with initialized dependencies.
func New(cfg config.Config, deps Dependencies) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		deps:    deps,
		batchID: uuid.NewString(),
	}
}

// Run processes every pending file in the input directory. It returns an
// error only for startup-fatal conditions: an unreadable input directory
// or an unusable progress file.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	entries, err := os.ReadDir(p.cfg.Paths.InputDir)
	if err != nil {
		return sum, fmt.Errorf("read input dir: %w", err)
	}

	processed, err := p.deps.Tracker.Load(p.cfg.Paths.InputDir, p.cfg.Paths.ResetProgress)
	if err != nil {
		return sum, err
	}

	log.Info().
		Str("batch_id", p.batchID).
		Str("input_dir", p.cfg.Paths.InputDir).
		Int("entries", len(entries)).
		Int("already_done", len(processed)).
		Msg("batch started")

	for _, entry := range entries {
		if ctx.Err() != nil {
			log.Info().Str("batch_id", p.batchID).Msg("batch interrupted, stopping before next file")
			break
		}
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if name == filepath.Base(p.cfg.Paths.ProgressFile) {
			continue
		}
		if _, done := processed[name]; done {
			log.Debug().Str("file", name).Msg("already recorded, skipping")
			sum.Skipped++
			mpkg.IncProcessed("skipped")
			continue
		}

		path := filepath.Join(p.cfg.Paths.InputDir, name)
		if _, err := os.Stat(path); err != nil {
			// raced with an external actor between listing and processing
			log.Warn().Str("file", name).Msg("file vanished before processing, skipping")
			sum.Skipped++
			mpkg.IncProcessed("skipped")
			continue
		}

		err := p.processFile(ctx, path, name)
		if err != nil && ctx.Err() != nil {
			// interrupted mid-file: leave it unrecorded so the next run
			// picks it up
			log.Info().Str("batch_id", p.batchID).Str("file", name).Msg("batch interrupted mid-file")
			break
		}

		if err != nil {
			sum.Failed++
			mpkg.IncProcessed("failed")
			log.Error().Err(err).Str("file", name).Msg("file failed, routed to unprocessed")
			p.routeToUnprocessed(path, name)
		} else {
			sum.Processed++
			mpkg.IncProcessed("success")
		}

		// Success and routed failure both count as handled; neither is
		// worth retrying on the next run.
		if err := p.deps.Tracker.Record(name); err != nil {
			log.Error().Err(err).Str("file", name).Msg("progress record failed, file may be reprocessed after a crash")
		}
	}

	log.Info().
		Str("batch_id", p.batchID).
		Int("processed", sum.Processed).
		Int("failed", sum.Failed).
		Int("skipped", sum.Skipped).
		Msg("batch finished")

	return sum, nil
}

// processFile walks one file through the per-file state machine:
// Extracting -> Generating -> Sanitizing -> Moving -> Recorded.
func (p *Pipeline) processFile(ctx context.Context, path, name string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected failure: %v", r)
			p.deps.ErrorLog.Error().
				Str("batch_id", p.batchID).
				Str("file", name).
				Interface("panic", r).
				Msg("panic while processing file")
		}
	}()

	info, err := p.deps.Detector.Detect(path)
	if err != nil {
		return fmt.Errorf("detect type: %w", err)
	}
	if !info.Supported() {
		return fmt.Errorf("%s", info.Description)
	}

	res := p.deps.Extractor.Extract(ctx, path, info.Kind)
	if res.Terminal() {
		return fmt.Errorf("extraction failed: %w", res.Err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rawName := p.deps.Generator.Generate(ctx, res.Text, res.ImageJPEG)
	if err := ctx.Err(); err != nil {
		return err
	}

	safeName := p.deps.Sanitizer.Sanitize(rawName)

	out, err := p.deps.Organizer.Move(path, p.cfg.Paths.ProcessedDir, safeName, info.Extension)
	if err != nil {
		return fmt.Errorf("move failed: %w", err)
	}

	log.Info().
		Str("batch_id", p.batchID).
		Str("original", name).
		Str("renamed", out.FinalName).
		Str("target", out.TargetPath).
		Msg("file processed")

	return nil
}

// routeToUnprocessed moves a failed file aside under its original name.
// Best-effort: a failure to even move it is reported and the batch
// continues.
func (p *Pipeline) routeToUnprocessed(path, name string) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	if _, err := p.deps.Organizer.Move(path, p.cfg.Paths.UnprocessedDir, base, ext); err != nil {
		log.Error().Err(err).Str("file", name).Msg("could not move file to unprocessed directory")
		p.deps.ErrorLog.Error().
			Str("batch_id", p.batchID).
			Str("file", name).
			Err(err).
			Msg("failed file could not be relocated")
	}
}
