package exporter

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charlievieth/fastwalk"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/pool"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
)

// progressInterval limits how often aggregation progress is reported.
const progressInterval = 100 * time.Millisecond

// Result is the outcome of an export run.
type Result struct {
	// Root is the resolved absolute root directory.
	Root string

	// Manifest maps each successfully hashed relative path to its digest.
	Manifest manifest.Manifest

	// Discovered is the number of regular files found during enumeration.
	Discovered int

	// Failures lists files that could not be enumerated or hashed, sorted
	// by path. They are absent from Manifest.
	Failures []types.FileFailure

	// TotalBytes is the combined size of the hashed files.
	TotalBytes int64

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// file is a regular file found during enumeration.
type file struct {
	rel  string
	abs  string
	size int64
}

// Exporter hashes every regular file beneath a root directory.
type Exporter struct {
	opts Options
	pool *pool.Pool
	log  *logging.Logger

	lastProgress time.Time
}

// New creates an Exporter. Options are validated and defaults applied.
func New(opts Options) (*Exporter, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p, err := pool.New(opts.Workers)
	if err != nil {
		return nil, err
	}

	return &Exporter{
		opts: opts,
		pool: p,
		log:  opts.Logger.Component("exporter"),
	}, nil
}

// Export enumerates and hashes the tree. It fails only when the root is not
// an existing directory; per-file failures are reported in the result.
func (e *Exporter) Export() (*Result, error) {
	start := time.Now()

	root, err := types.ResolveRoot(e.opts.Root)
	if err != nil {
		return nil, err
	}

	e.report(types.Progress{Phase: types.PhaseEnumerating}, true)
	files, failures, err := e.enumerate(root)
	if err != nil {
		return nil, err
	}

	total := int64(len(files))
	e.log.Info("enumeration complete", "root", root, "files", total, "workers", e.pool.Workers())
	e.report(types.Progress{Phase: types.PhaseDispatching, Total: total}, true)

	units := make([]pool.Unit[string], len(files))
	for i, f := range files {
		units[i] = func() (string, error) {
			return e.opts.Hasher.Hash(f.abs)
		}
	}

	result := &Result{
		Root:       root,
		Manifest:   manifest.New(len(files)),
		Discovered: len(files),
	}

	var completed int64
	e.report(types.Progress{Phase: types.PhaseAggregating, Total: total}, true)
	pool.Each(e.pool, units, func(r pool.Result[string]) {
		f := files[r.Index]
		completed++
		if r.Err != nil {
			e.log.Error("failed to hash file", "path", f.rel, "error", r.Err)
			failures = append(failures, types.FileFailure{Path: f.rel, Error: r.Err.Error()})
		} else {
			result.Manifest[f.rel] = r.Value
			result.TotalBytes += f.size
		}
		e.report(types.Progress{
			Phase:       types.PhaseAggregating,
			Total:       total,
			Completed:   completed,
			CurrentPath: f.rel,
		}, completed == total)
	})

	slices.SortFunc(failures, func(a, b types.FileFailure) int {
		return strings.Compare(a.Path, b.Path)
	})
	result.Failures = failures
	result.Elapsed = time.Since(start)

	e.report(types.Progress{Phase: types.PhaseReporting, Total: total, Completed: completed}, true)
	e.log.Info("export complete",
		"hashed", result.Manifest.Len(),
		"failed", len(failures),
		"bytes", result.TotalBytes,
		"elapsed", result.Elapsed,
	)
	e.report(types.Progress{Phase: types.PhaseDone, Total: total, Completed: completed}, true)

	return result, nil
}

// ExportTo runs Export and writes the manifest to path.
func (e *Exporter) ExportTo(path string) (*Result, error) {
	result, err := e.Export()
	if err != nil {
		return nil, err
	}
	if err := manifest.WriteFile(path, result.Manifest); err != nil {
		e.log.Error("failed to write manifest", "path", path, "error", err)
		return result, err
	}
	e.log.Info("manifest written", "path", path, "entries", result.Manifest.Len())
	return result, nil
}

// enumerate walks root and returns its regular files sorted by relative
// path, along with entries that could not be read.
func (e *Exporter) enumerate(root string) ([]file, []types.FileFailure, error) {
	conf := fastwalk.Config{
		Follow: false, // Don't follow symlinks.
	}

	var (
		mu       sync.Mutex
		files    []file
		failures []types.FileFailure
	)

	addFailure := func(path string, err error) {
		rel := relPath(root, path)
		e.log.Warn("skipping unreadable entry", "path", rel, "error", err)
		mu.Lock()
		failures = append(failures, types.FileFailure{Path: rel, Error: err.Error()})
		mu.Unlock()
	}

	walkErr := fastwalk.Walk(&conf, root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			addFailure(path, err)
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			addFailure(path, err)
			return nil
		}

		f := file{rel: relPath(root, path), abs: path, size: info.Size()}
		mu.Lock()
		files = append(files, f)
		mu.Unlock()
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, fastwalk.ErrSkipFiles) {
		return nil, nil, fmt.Errorf("walking %s: %w", root, walkErr)
	}

	slices.SortFunc(files, func(a, b file) int {
		return strings.Compare(a.rel, b.rel)
	})
	return files, failures, nil
}

// relPath returns path relative to root using forward slashes.
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}

// report forwards progress to OnProgress. Unforced reports are throttled.
func (e *Exporter) report(p types.Progress, force bool) {
	if e.opts.OnProgress == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(e.lastProgress) < progressInterval {
		return
	}
	e.lastProgress = now
	e.opts.OnProgress(p)
}
