package organizer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// MoveError is returned only when both the direct move and the
// copy-then-delete fallback fail.
type MoveError struct {
	Source string
	Target string
	Err    error
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("move %s -> %s: %v", e.Source, e.Target, e.Err)
}

func (e *MoveError) Unwrap() error { return e.Err }

// MoveOutcome reports where a file ended up after collision resolution.
type MoveOutcome struct {
	FinalName  string // filename actually used, including extension
	TargetPath string
}

// Organizer performs collision-safe, retrying file moves.
type Organizer struct {
	maxAttempts int
	retryDelay  time.Duration

	// sleep is swappable in tests
	sleep func(d time.Duration)
}

// New creates an organizer with the given per-move retry budget.
func New(maxAttempts int, retryDelay time.Duration) *Organizer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Organizer{
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		sleep:       time.Sleep,
	}
}

// EnsureDir creates a directory if absent. Safe to call repeatedly.
func (o *Organizer) EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}
	return nil
}

// Move relocates source into targetDir under desiredName+extension,
// appending _1, _2, ... when the name is taken. The free name is reserved
// with an exclusive create so concurrent batch runs targeting the same
// directory cannot claim it between the probe and the move.
func (o *Organizer) Move(source, targetDir, desiredName, extension string) (MoveOutcome, error) {
	if err := o.EnsureDir(targetDir); err != nil {
		return MoveOutcome{}, err
	}

	finalName, target, err := o.reserveName(targetDir, desiredName, extension)
	if err != nil {
		return MoveOutcome{}, err
	}

	if err := o.moveInto(source, target); err != nil {
		// release the reservation so the name is reusable
		_ = os.Remove(target)
		return MoveOutcome{}, err
	}

	log.Debug().
		Str("source", source).
		Str("target", target).
		Msg("moved file")

	return MoveOutcome{FinalName: finalName, TargetPath: target}, nil
}

// reserveName finds a free name in targetDir and claims it atomically.
func (o *Organizer) reserveName(targetDir, desiredName, extension string) (string, string, error) {
	for n := 0; ; n++ {
		name := desiredName
		if n > 0 {
			name = fmt.Sprintf("%s_%d", desiredName, n)
		}
		name += extension

		target := filepath.Join(targetDir, name)
		f, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			f.Close()
			if n > 0 {
				log.Debug().Str("name", name).Int("suffix", n).Msg("resolved name collision")
			}
			return name, target, nil
		}
		if !os.IsExist(err) {
			return "", "", fmt.Errorf("reserve %s: %w", target, err)
		}
	}
}

// moveInto replaces the reserved target with source. Direct renames are
// retried with increasing delay to ride out transient sharing violations
// (antivirus scans and similar short-lived locks), then a copy-then-delete
// fallback runs.
func (o *Organizer) moveInto(source, target string) error {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		lastErr = os.Rename(source, target)
		if lastErr == nil {
			return nil
		}
		log.Warn().
			Err(lastErr).
			Str("source", source).
			Int("attempt", attempt).
			Int("max_attempts", o.maxAttempts).
			Msg("rename failed")
		if attempt < o.maxAttempts {
			o.sleep(o.retryDelay * time.Duration(attempt))
		}
	}

	if err := copyFile(source, target); err != nil {
		return &MoveError{Source: source, Target: target, Err: lastErr}
	}
	if err := os.Remove(source); err != nil {
		return &MoveError{Source: source, Target: target, Err: fmt.Errorf("remove source after copy: %w", err)}
	}

	log.Debug().Str("source", source).Str("target", target).Msg("moved via copy-then-delete fallback")
	return nil
}

func copyFile(source, target string) error {
	in, err := os.Open(source)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
