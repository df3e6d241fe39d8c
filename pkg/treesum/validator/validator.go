// Package validator checks a directory tree against a manifest, reporting
// files that are missing and files whose content no longer matches.
package validator

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/pool"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
)

// progressInterval limits how often aggregation progress is reported.
const progressInterval = 100 * time.Millisecond

// FileHasher computes the digest of the file at path.
// Implementations must be safe for concurrent use.
type FileHasher interface {
	Hash(path string) (string, error)
}

// Options configures the validator.
type Options struct {
	// Root is the directory checked against the manifest.
	Root string

	// Workers is the maximum number of files checked at once.
	// Zero selects pool.DefaultWorkers; negative values are rejected.
	Workers int

	// ChunkSize is the read size for the default hasher.
	ChunkSize int

	// Hasher overrides the default SHA-256 file hasher.
	Hasher FileHasher

	// Logger receives run messages. Nil discards.
	Logger *logging.Logger

	// ErrorLog receives one line per discrepancy as it is found.
	// Nil discards.
	ErrorLog *logging.Logger

	// OnProgress is called from the aggregating goroutine.
	OnProgress func(types.Progress)
}

// Validate applies defaults for unset fields and rejects invalid ones.
func (o *Options) Validate() error {
	if o.Root == "" {
		o.Root = "."
	}
	if o.Workers == 0 {
		o.Workers = pool.DefaultWorkers
	}
	if err := types.ValidateWorkers(o.Workers); err != nil {
		return fmt.Errorf("invalid validator options: %w", err)
	}
	if err := hasher.ValidateChunkSize(int64(o.ChunkSize)); err != nil {
		return fmt.Errorf("invalid validator options: %w", err)
	}
	if o.Hasher == nil {
		o.Hasher = hasher.New(o.ChunkSize)
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	if o.ErrorLog == nil {
		o.ErrorLog = logging.Discard()
	}
	return nil
}

// Report is the outcome of a validation run.
type Report struct {
	// Root is the resolved absolute root directory.
	Root string

	// Checked is the number of manifest entries examined.
	Checked int

	// Discrepancies is sorted by path.
	Discrepancies []Discrepancy

	// TotalBytes is the combined size of the files that were hashed.
	TotalBytes int64

	// Elapsed is the wall time of the run.
	Elapsed time.Duration
}

// Clean reports whether the tree matched the manifest exactly.
func (r *Report) Clean() bool {
	return len(r.Discrepancies) == 0
}

// Missing returns the number of missing files.
func (r *Report) Missing() int {
	return r.count(KindMissing)
}

// Mismatched returns the number of files whose content differs.
func (r *Report) Mismatched() int {
	return r.count(KindMismatch)
}

func (r *Report) count(k Kind) int {
	n := 0
	for _, d := range r.Discrepancies {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// check is the outcome of verifying one manifest entry.
type check struct {
	discrepancy *Discrepancy
	size        int64
	hashErr     error
}

// Validator compares a tree against a manifest.
type Validator struct {
	opts     Options
	pool     *pool.Pool
	log      *logging.Logger
	errorLog *logging.Logger

	lastProgress time.Time
}

// New creates a Validator. Options are validated and defaults applied.
func New(opts Options) (*Validator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	p, err := pool.New(opts.Workers)
	if err != nil {
		return nil, err
	}

	return &Validator{
		opts:     opts,
		pool:     p,
		log:      opts.Logger.Component("validator"),
		errorLog: opts.ErrorLog,
	}, nil
}

// ValidateFile loads the manifest at manifestPath and validates the tree
// against it. A corrupt manifest is returned before any file is examined.
func (v *Validator) ValidateFile(manifestPath string) (*Report, error) {
	v.report(types.Progress{Phase: types.PhaseLoading}, true)

	m, err := manifest.ReadFile(manifestPath)
	if err != nil {
		v.log.Error("failed to load manifest", "path", manifestPath, "error", err)
		return nil, err
	}
	v.log.Info("manifest loaded", "path", manifestPath, "entries", m.Len())

	return v.Validate(m)
}

// Validate checks every manifest entry against the tree. Neither the tree
// nor the manifest is modified.
func (v *Validator) Validate(m manifest.Manifest) (*Report, error) {
	start := time.Now()

	root, err := types.ResolveRoot(v.opts.Root)
	if err != nil {
		return nil, err
	}

	entries := m.Entries()
	total := int64(len(entries))
	v.report(types.Progress{Phase: types.PhaseDispatching, Total: total}, true)

	units := make([]pool.Unit[check], len(entries))
	for i, entry := range entries {
		units[i] = func() (check, error) {
			return v.checkEntry(root, entry), nil
		}
	}

	rep := &Report{Root: root, Checked: len(entries)}

	var completed int64
	v.report(types.Progress{Phase: types.PhaseAggregating, Total: total}, true)
	pool.Each(v.pool, units, func(r pool.Result[check]) {
		entry := entries[r.Index]
		completed++

		c := r.Value
		if r.Err != nil {
			// A panicking check is treated like an unreadable file.
			c = check{
				discrepancy: &Discrepancy{Kind: KindMismatch, Path: entry.Path, Expected: entry.Digest, Cause: r.Err.Error()},
				hashErr:     r.Err,
			}
		}

		if c.hashErr != nil {
			v.errorLog.Error(fmt.Sprintf("hash failure: %s: %v", entry.Path, c.hashErr))
			v.log.Warn("failed to hash file", "path", entry.Path, "error", c.hashErr)
		}
		if c.discrepancy != nil {
			v.errorLog.Error(c.discrepancy.String())
			rep.Discrepancies = append(rep.Discrepancies, *c.discrepancy)
		}
		rep.TotalBytes += c.size

		v.report(types.Progress{
			Phase:       types.PhaseAggregating,
			Total:       total,
			Completed:   completed,
			CurrentPath: entry.Path,
		}, completed == total)
	})

	sortDiscrepancies(rep.Discrepancies)
	rep.Elapsed = time.Since(start)

	v.report(types.Progress{Phase: types.PhaseReporting, Total: total, Completed: completed}, true)
	v.log.Info("validation complete",
		"checked", rep.Checked,
		"missing", rep.Missing(),
		"mismatched", rep.Mismatched(),
		"elapsed", rep.Elapsed,
	)
	v.report(types.Progress{Phase: types.PhaseDone, Total: total, Completed: completed}, true)

	return rep, nil
}

// checkEntry verifies a single entry. It runs on a pool worker and touches
// no shared state.
func (v *Validator) checkEntry(root string, entry manifest.FileEntry) check {
	path := filepath.Join(root, filepath.FromSlash(entry.Path))

	// A regular file where a parent directory used to be also means the entry is gone.
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOTDIR) {
		return check{discrepancy: &Discrepancy{Kind: KindMissing, Path: entry.Path}}
	}

	digest, hashErr := v.opts.Hasher.Hash(path)
	if hashErr != nil {
		return check{
			discrepancy: &Discrepancy{
				Kind:     KindMismatch,
				Path:     entry.Path,
				Expected: entry.Digest,
				Cause:    hashErr.Error(),
			},
			hashErr: hashErr,
		}
	}

	var size int64
	if info != nil {
		size = info.Size()
	}
	if digest != entry.Digest {
		return check{
			discrepancy: &Discrepancy{
				Kind:     KindMismatch,
				Path:     entry.Path,
				Expected: entry.Digest,
				Actual:   digest,
			},
			size: size,
		}
	}
	return check{size: size}
}

// report forwards progress to OnProgress. Unforced reports are throttled.
func (v *Validator) report(p types.Progress, force bool) {
	if v.opts.OnProgress == nil {
		return
	}
	now := time.Now()
	if !force && now.Sub(v.lastProgress) < progressInterval {
		return
	}
	v.lastProgress = now
	v.opts.OnProgress(p)
}
