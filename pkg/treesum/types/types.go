// Package types provides core data types shared across treesum packages.
// It includes the run phase state machine, progress snapshots, per-file
// failures, the precondition errors checked before any work is dispatched,
// and helpers for parsing and formatting byte sizes.
package types

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// Phase is a step of an export or import run.
type Phase int

// Run phases in the order a run moves through them. Enumerating is used by
// export and Loading by import; both lead to Dispatching.
const (
	PhaseIdle Phase = iota
	PhaseEnumerating
	PhaseLoading
	PhaseDispatching
	PhaseAggregating
	PhaseReporting
	PhaseDone
)

// String returns the lowercase name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseEnumerating:
		return "enumerating"
	case PhaseLoading:
		return "loading"
	case PhaseDispatching:
		return "dispatching"
	case PhaseAggregating:
		return "aggregating"
	case PhaseReporting:
		return "reporting"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// Progress reports real-time run progress.
type Progress struct {
	// Phase is the step the run is currently in.
	Phase Phase `json:"phase"`

	// Total is the number of units of work known for the run. It is set
	// once enumeration or loading has finished.
	Total int64 `json:"total"`

	// Completed is the number of units whose result has been aggregated.
	Completed int64 `json:"completed"`

	// CurrentPath is the relative path of the most recently aggregated unit.
	CurrentPath string `json:"current_path,omitempty"`
}

// FileFailure records a file that could not be hashed or enumerated.
type FileFailure struct {
	// Path is the slash-separated path relative to the run root.
	Path string `json:"path"`

	// Error is the error message describing what went wrong.
	Error string `json:"error"`
}

// ErrInvalidWorkers indicates a worker count below one.
var ErrInvalidWorkers = errors.New("worker count must be a positive integer")

// ErrRootNotFound indicates the target directory does not exist.
var ErrRootNotFound = errors.New("target directory does not exist")

// ErrRootNotDir indicates the target path exists but is not a directory.
var ErrRootNotDir = errors.New("target path is not a directory")

// PreconditionError reports a run that was rejected before any work was
// dispatched.
type PreconditionError struct {
	Root string
	Err  error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("precondition failed for %s: %v", e.Root, e.Err)
}

func (e *PreconditionError) Unwrap() error {
	return e.Err
}

// ValidateWorkers returns an error wrapping ErrInvalidWorkers when n < 1.
func ValidateWorkers(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, n)
	}
	return nil
}

// ResolveRoot resolves root to an absolute path and verifies it is an
// existing directory. Failures are returned as *PreconditionError.
func ResolveRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", &PreconditionError{Root: root, Err: err}
	}

	info, err := os.Stat(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", &PreconditionError{Root: root, Err: ErrRootNotFound}
		}
		return "", &PreconditionError{Root: root, Err: err}
	}
	if !info.IsDir() {
		return "", &PreconditionError{Root: root, Err: ErrRootNotDir}
	}

	return abs, nil
}

// sizePattern matches size strings like "100M", "2G", "500K", "1.5GB", etc.
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?(?:i?B)?)\s*$`)

// ErrInvalidSize indicates that the size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size value was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// ParseSize parses a human-readable size string and returns the size in bytes.
// It supports the following formats:
//   - Plain bytes: "1024", "0"
//   - With byte suffix: "512B", "512b"
//   - Kilobytes: "8K", "8k", "8KB", "8KiB"
//   - Megabytes: "1M", "1MB", "1MiB"
//   - Gigabytes and terabytes with the same suffix forms
//
// Decimal values are supported and truncated to the nearest byte.
// Leading and trailing whitespace is ignored.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}

	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "IB")
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	bytes := value * float64(multiplier)
	if bytes >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalidSize, s)
	}
	return int64(bytes), nil
}

// FormatSize converts a size in bytes to a human-readable string using
// binary (IEC) units, e.g. FormatSize(1536*1024) returns "1.5 MiB".
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
