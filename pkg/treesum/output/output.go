// Package output provides formatters for displaying treesum export and
// import results in various output formats (pretty, plain, json, yaml).
//
// The package uses a registry pattern to allow registration of multiple
// formatter implementations that can be selected at runtime.
//
// Basic usage:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    return err
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    return err
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jamesainslie/treesum/pkg/treesum/exporter"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/jamesainslie/treesum/pkg/treesum/validator"
)

// Mode identifies which command produced a Result.
type Mode string

const (
	// ModeExport is a manifest export.
	ModeExport Mode = "export"
	// ModeImport is a validation against a manifest.
	ModeImport Mode = "import"
)

// Result contains the summary of a run for formatting.
type Result struct {
	// Mode is the command that produced the result.
	Mode Mode

	// Root is the directory that was hashed or validated.
	Root string

	// ManifestPath is the manifest written or read.
	ManifestPath string

	// ErrorLog is the discrepancy log path. Import only.
	ErrorLog string

	// Discovered is the number of regular files found. Export only.
	Discovered int

	// Hashed is the number of manifest entries written. Export only.
	Hashed int

	// Checked is the number of manifest entries examined. Import only.
	Checked int

	// Failures lists files that could not be hashed during export.
	Failures []types.FileFailure

	// Discrepancies lists differences found during import, sorted by path.
	Discrepancies []validator.Discrepancy

	// TotalBytes is the combined size of the files hashed.
	TotalBytes int64

	// Duration is the wall time of the run.
	Duration time.Duration

	// RunID is the history record ID, empty when history is disabled.
	RunID string
}

// FromExport builds a Result from an export run.
func FromExport(r *exporter.Result, manifestPath string) *Result {
	return &Result{
		Mode:         ModeExport,
		Root:         r.Root,
		ManifestPath: manifestPath,
		Discovered:   r.Discovered,
		Hashed:       r.Manifest.Len(),
		Failures:     r.Failures,
		TotalBytes:   r.TotalBytes,
		Duration:     r.Elapsed,
	}
}

// FromReport builds a Result from an import run.
func FromReport(r *validator.Report, manifestPath, errorLog string) *Result {
	return &Result{
		Mode:          ModeImport,
		Root:          r.Root,
		ManifestPath:  manifestPath,
		ErrorLog:      errorLog,
		Checked:       r.Checked,
		Discrepancies: r.Discrepancies,
		TotalBytes:    r.TotalBytes,
		Duration:      r.Elapsed,
	}
}

// Missing returns the number of missing-file discrepancies.
func (r *Result) Missing() int {
	return r.countKind(validator.KindMissing)
}

// Mismatched returns the number of content discrepancies.
func (r *Result) Mismatched() int {
	return r.countKind(validator.KindMismatch)
}

func (r *Result) countKind(k validator.Kind) int {
	n := 0
	for _, d := range r.Discrepancies {
		if d.Kind == k {
			n++
		}
	}
	return n
}

// Formatter is the interface that all output formatters must implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	// It returns an error if formatting fails.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory is a function that creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry.
// It will replace any existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
// It returns an error if the formatter is not found.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	hours := minutes / 60
	minutes = minutes % 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}
