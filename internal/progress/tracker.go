package progress

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
)

// Tracker persists an append-only record of handled filenames so an
// interrupted batch can resume without re-processing. One original filename
// per line, UTF-8. Absence of the file means nothing was processed yet.
type Tracker struct {
	path string
	lock *flock.Flock
}

// New creates a tracker backed by the given progress file.
func New(path string) *Tracker {
	return &Tracker{
		path: path,
		lock: flock.New(path),
	}
}

// Path returns the progress file location.
func (t *Tracker) Path() string { return t.path }

// Load returns the set of already-handled original filenames. With reset,
// any existing record is deleted first. Entries whose source file no longer
// exists under inputDir are pruned; a name is only worth skipping while a
// pending input file still carries it.
func (t *Tracker) Load(inputDir string, reset bool) (map[string]struct{}, error) {
	if reset {
		if err := os.Remove(t.path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("reset progress file: %w", err)
		}
		log.Info().Str("file", t.path).Msg("progress reset")
	}

	// A progress file we cannot append to makes resumption impossible;
	// surface that at startup rather than mid-batch.
	if err := t.verifyWritable(); err != nil {
		return nil, err
	}

	processed := make(map[string]struct{})

	f, err := os.Open(t.path)
	if err != nil {
		if os.IsNotExist(err) {
			return processed, nil
		}
		return nil, fmt.Errorf("open progress file: %w", err)
	}
	defer f.Close()

	var stale int
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(inputDir, name)); err != nil {
			stale++
			continue
		}
		processed[name] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read progress file: %w", err)
	}

	log.Info().
		Str("file", t.path).
		Int("resumable", len(processed)).
		Int("stale", stale).
		Msg("loaded progress record")

	return processed, nil
}

// Record appends one handled filename under an exclusive lock and flushes
// immediately so the entry survives a crash of the very next unit of work.
// A contended lock is waited for; only when locking itself fails (restricted
// environment) does the write proceed unlocked, as the record is a
// best-effort recovery aid, not a transaction log.
func (t *Tracker) Record(name string) error {
	if err := t.lock.Lock(); err != nil {
		log.Warn().Err(err).Str("file", t.path).Msg("progress locking unavailable, appending unlocked")
	} else {
		defer func() {
			if err := t.lock.Unlock(); err != nil {
				log.Warn().Err(err).Msg("progress unlock failed")
			}
		}()
	}

	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open progress file for append: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(name + "\n"); err != nil {
		return fmt.Errorf("append progress record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("flush progress record: %w", err)
	}
	return nil
}

func (t *Tracker) verifyWritable() error {
	if dir := filepath.Dir(t.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create progress dir: %w", err)
		}
	}
	f, err := os.OpenFile(t.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("progress file not writable: %w", err)
	}
	return f.Close()
}
