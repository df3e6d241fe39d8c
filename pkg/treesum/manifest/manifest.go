// Package manifest holds the path to digest mapping produced by an export
// and its compressed on-disk form.
//
// The persisted format is a gzip-compressed UTF-8 JSON object. Keys are
// slash-separated paths relative to the exported root and values are
// lowercase hex SHA-256 digests. There is no version header.
package manifest

import (
	"maps"
	"slices"
)

// FileEntry pairs a relative path with its content digest.
type FileEntry struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

// Manifest maps relative slash-separated paths to digests.
type Manifest map[string]string

// New returns an empty manifest with room for n entries.
func New(n int) Manifest {
	return make(Manifest, n)
}

// Len returns the number of entries.
func (m Manifest) Len() int {
	return len(m)
}

// Paths returns all paths in sorted order.
func (m Manifest) Paths() []string {
	return slices.Sorted(maps.Keys(m))
}

// Entries returns all entries sorted by path.
func (m Manifest) Entries() []FileEntry {
	paths := m.Paths()
	entries := make([]FileEntry, len(paths))
	for i, p := range paths {
		entries[i] = FileEntry{Path: p, Digest: m[p]}
	}
	return entries
}

// Equal reports whether both manifests hold the same path and digest pairs.
func (m Manifest) Equal(other Manifest) bool {
	return maps.Equal(m, other)
}
