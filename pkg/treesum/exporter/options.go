// Package exporter builds a manifest for a directory tree by enumerating its
// regular files and hashing them on a bounded worker pool.
package exporter

import (
	"fmt"

	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/pool"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
)

// FileHasher computes the digest of the file at path.
// Implementations must be safe for concurrent use.
type FileHasher interface {
	Hash(path string) (string, error)
}

// Options configures the exporter.
type Options struct {
	// Root is the directory whose regular files are hashed.
	Root string

	// Workers is the maximum number of files hashed at once.
	// Zero selects pool.DefaultWorkers; negative values are rejected.
	Workers int

	// ChunkSize is the read size for the default hasher.
	// Ignored when Hasher is set.
	ChunkSize int

	// Hasher overrides the default SHA-256 file hasher.
	Hasher FileHasher

	// Logger receives run and per-file failure messages. Nil discards.
	Logger *logging.Logger

	// OnProgress is called from the aggregating goroutine on every phase
	// change and periodically while results arrive.
	OnProgress func(types.Progress)
}

// DefaultOptions returns options with the default worker count and chunk size.
func DefaultOptions() Options {
	return Options{
		Root:      ".",
		Workers:   pool.DefaultWorkers,
		ChunkSize: hasher.DefaultChunkSize,
	}
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
		return fmt.Errorf("invalid exporter options: %w", err)
	}
	if err := hasher.ValidateChunkSize(int64(o.ChunkSize)); err != nil {
		return fmt.Errorf("invalid exporter options: %w", err)
	}
	if o.Hasher == nil {
		o.Hasher = hasher.New(o.ChunkSize)
	}
	if o.Logger == nil {
		o.Logger = logging.Discard()
	}
	return nil
}
