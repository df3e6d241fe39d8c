package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AppendWriter appends to a single file that is never truncated or renamed.
// Each write holds an advisory lock so that lines from concurrent treesum
// processes sharing the file do not interleave.
type AppendWriter struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	size   int64
	opened time.Time
}

// OpenAppend opens path for appending, creating it and its parent
// directories as needed.
func OpenAppend(path string) (*AppendWriter, error) {
	w := &AppendWriter{path: path}
	if err := w.reopen(); err != nil {
		return nil, err
	}
	return w, nil
}

// Path returns the file being appended to.
func (w *AppendWriter) Path() string {
	return w.path
}

// Write appends p. It fails with os.ErrClosed after Close.
func (w *AppendWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writeLocked(p)
}

func (w *AppendWriter) writeLocked(p []byte) (int, error) {
	if w.file == nil {
		return 0, os.ErrClosed
	}
	if err := lockFile(w.file); err != nil {
		return 0, fmt.Errorf("locking %s: %w", w.path, err)
	}
	defer unlockFile(w.file)

	n, err := w.file.Write(p)
	w.size += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", w.path, err)
	}
	return n, nil
}

// Close syncs and closes the file. Further calls are no-ops.
func (w *AppendWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *AppendWriter) closeLocked() error {
	if w.file == nil {
		return nil
	}
	syncErr := w.file.Sync()
	closeErr := w.file.Close()
	w.file = nil
	if err := errors.Join(syncErr, closeErr); err != nil {
		return fmt.Errorf("closing %s: %w", w.path, err)
	}
	return nil
}

// reopen opens the file at path and records its current size and
// modification time.
func (w *AppendWriter) reopen() error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", w.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		return errors.Join(fmt.Errorf("stat %s: %w", w.path, err), f.Close())
	}
	w.file = f
	w.size = info.Size()
	w.opened = info.ModTime()
	return nil
}
