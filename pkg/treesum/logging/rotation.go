package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultMaxSize is the application log size that triggers rotation when
// none is configured.
const DefaultMaxSize int64 = 10 << 20

// backupLayout stamps rotated files. It is fixed width, so backup names sort
// in time order.
const backupLayout = "20060102T150405.000000000"

// RotationConfig bounds the application log. The discrepancy log is opened
// with OpenAppend instead and is never rotated.
type RotationConfig struct {
	// MaxSize is the size in bytes a write may not push the file past.
	// Zero or negative selects DefaultMaxSize.
	MaxSize int64

	// MaxAge prunes backups stamped more than this many days ago.
	// Zero keeps them regardless of age.
	MaxAge int

	// MaxBackups is the number of backups kept. Zero keeps all.
	MaxBackups int

	// Daily starts a new file on the first write of each calendar day.
	Daily bool
}

// DefaultRotationConfig returns the rotation used when logging is not
// configured.
func DefaultRotationConfig() RotationConfig {
	return RotationConfig{
		MaxSize:    DefaultMaxSize,
		MaxAge:     30,
		MaxBackups: 5,
		Daily:      true,
	}
}

// RotatingWriter is an AppendWriter that moves the current file aside to
// <name>-<stamp><ext> when it grows past MaxSize or a new day begins.
type RotatingWriter struct {
	out *AppendWriter
	cfg RotationConfig
	now func() time.Time
}

// NewRotatingWriter opens path for appending and prunes stale backups.
func NewRotatingWriter(path string, cfg RotationConfig) (*RotatingWriter, error) {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	out, err := OpenAppend(path)
	if err != nil {
		return nil, err
	}
	w := &RotatingWriter{out: out, cfg: cfg, now: time.Now}
	w.prune(w.now())
	return w, nil
}

// Write appends p, rotating first when p would not fit.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.out.mu.Lock()
	defer w.out.mu.Unlock()

	if w.out.file != nil && w.due(int64(len(p))) {
		if err := w.rotateLocked(); err != nil {
			return 0, fmt.Errorf("rotating log file: %w", err)
		}
	}
	return w.out.writeLocked(p)
}

// Close closes the current file.
func (w *RotatingWriter) Close() error {
	return w.out.Close()
}

// due reports whether the current file must be moved aside before writing
// n more bytes. An empty file is never rotated.
func (w *RotatingWriter) due(n int64) bool {
	if w.out.size == 0 {
		return false
	}
	if w.out.size+n > w.cfg.MaxSize {
		return true
	}
	return w.cfg.Daily && !sameDay(w.out.opened, w.now())
}

func (w *RotatingWriter) rotateLocked() error {
	if err := w.out.closeLocked(); err != nil {
		return err
	}

	now := w.now()
	ext := filepath.Ext(w.out.path)
	backup := strings.TrimSuffix(w.out.path, ext) + "-" + now.UTC().Format(backupLayout) + ext
	if err := os.Rename(w.out.path, backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		// Keep appending to the old file rather than losing output.
		return errors.Join(err, w.out.reopen())
	}
	if err := w.out.reopen(); err != nil {
		return err
	}
	w.out.opened = now
	w.prune(now)
	return nil
}

type backupFile struct {
	path    string
	stamped time.Time
}

// prune removes backups beyond MaxBackups, newest kept first, and those
// stamped before the MaxAge cutoff. Removal errors are ignored.
func (w *RotatingWriter) prune(now time.Time) {
	if w.cfg.MaxBackups <= 0 && w.cfg.MaxAge <= 0 {
		return
	}
	backups := w.backups()
	slices.SortFunc(backups, func(a, b backupFile) int {
		return b.stamped.Compare(a.stamped)
	})

	cutoff := now.AddDate(0, 0, -w.cfg.MaxAge)
	for i, b := range backups {
		tooMany := w.cfg.MaxBackups > 0 && i >= w.cfg.MaxBackups
		tooOld := w.cfg.MaxAge > 0 && b.stamped.Before(cutoff)
		if tooMany || tooOld {
			_ = os.Remove(b.path)
		}
	}
}

// backups lists files next to the log whose names carry a backup stamp.
func (w *RotatingWriter) backups() []backupFile {
	dir := filepath.Dir(w.out.path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	base := filepath.Base(w.out.path)
	ext := filepath.Ext(base)
	prefix := strings.TrimSuffix(base, ext) + "-"

	var found []backupFile
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stamp, ok := strings.CutPrefix(entry.Name(), prefix)
		if !ok {
			continue
		}
		if stamp, ok = strings.CutSuffix(stamp, ext); !ok {
			continue
		}
		at, err := time.Parse(backupLayout, stamp)
		if err != nil {
			continue
		}
		found = append(found, backupFile{path: filepath.Join(dir, entry.Name()), stamped: at})
	}
	return found
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
