// Package eventlog persists one human-readable line per fired classifier
// event to a per-kind append-only text file. Every detection is recorded
// here, including events the arming machine later suppresses, so the files
// are the ground truth for classifier tuning.
package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Log writes per-kind event records under a single directory. Files are
// opened lazily on first use and held open for the session.
type Log struct {
	dir string

	mu    sync.Mutex
	files map[string]*os.File
}

// New creates a Log rooted at dir. The directory must already exist.
func New(dir string) *Log {
	return &Log{
		dir:   dir,
		files: make(map[string]*os.File),
	}
}

// Record appends `<kind> (<trigger>)` to the kind's file, with the trigger
// rounded to three decimals.
func (l *Log) Record(kind string, trigger float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.files[kind]
	if !ok {
		path := filepath.Join(l.dir, kind+".log")
		var err error
		f, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open event log %s: %w", path, err)
		}
		l.files[kind] = f
	}

	if _, err := fmt.Fprintf(f, "%s (%.3f)\n", kind, trigger); err != nil {
		return fmt.Errorf("failed to append to event log for %s: %w", kind, err)
	}
	return nil
}

// Close closes all open event log files.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for kind, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(l.files, kind)
	}
	return firstErr
}
