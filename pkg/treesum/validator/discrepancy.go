package validator

import (
	"fmt"
	"slices"
	"strings"
)

// Kind classifies a discrepancy.
type Kind int

// Discrepancy kinds.
const (
	// KindMissing is a manifest entry with no file in the tree.
	KindMissing Kind = iota
	// KindMismatch is a file whose digest differs from the manifest, or
	// that could not be hashed.
	KindMismatch
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindMissing:
		return "missing"
	case KindMismatch:
		return "mismatch"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// absent is how a missing actual digest is rendered.
const absent = "absent"

// Discrepancy is a difference between a manifest and the tree it describes.
type Discrepancy struct {
	Kind Kind   `json:"kind"`
	Path string `json:"path"`

	// Expected is the manifest digest. Set for mismatches only.
	Expected string `json:"expected,omitempty"`

	// Actual is the digest computed from the tree. Empty when the file
	// could not be hashed.
	Actual string `json:"actual,omitempty"`

	// Cause describes why the file could not be hashed, if it could not.
	Cause string `json:"cause,omitempty"`
}

// String renders the discrepancy as written to the error log.
func (d Discrepancy) String() string {
	if d.Kind == KindMissing {
		return "MISSING: " + d.Path
	}
	actual := d.Actual
	if actual == "" {
		actual = absent
	}
	return fmt.Sprintf("HASH MISMATCH: %s (expected: %s, got: %s)", d.Path, d.Expected, actual)
}

// sortDiscrepancies orders discrepancies by path.
func sortDiscrepancies(ds []Discrepancy) {
	slices.SortFunc(ds, func(a, b Discrepancy) int {
		return strings.Compare(a.Path, b.Path)
	})
}
