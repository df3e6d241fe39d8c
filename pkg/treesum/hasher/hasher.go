// Package hasher computes SHA-256 content digests of files by streaming
// them through the digest in fixed-size chunks.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 8192

// MaxChunkSize bounds the per-read buffer each worker allocates.
const MaxChunkSize = 64 << 20

// ErrChunkSize indicates a chunk size above MaxChunkSize.
var ErrChunkSize = errors.New("chunk size exceeds 64 MiB")

// ValidateChunkSize rejects sizes above MaxChunkSize. Sizes below one are
// accepted and select DefaultChunkSize.
func ValidateChunkSize(n int64) error {
	if n > MaxChunkSize {
		return fmt.Errorf("%w: got %d", ErrChunkSize, n)
	}
	return nil
}

// DigestLen is the length of a hex encoded SHA-256 digest.
const DigestLen = sha256.Size * 2

// IOFailure reports a file that could not be opened or read to the end.
type IOFailure struct {
	Path string
	Err  error
}

func (e *IOFailure) Error() string {
	return fmt.Sprintf("hashing %s: %v", e.Path, e.Err)
}

func (e *IOFailure) Unwrap() error {
	return e.Err
}

// Hasher produces lowercase hex SHA-256 digests of files.
// A Hasher holds no per-call state and is safe for concurrent use.
type Hasher struct {
	chunkSize int
}

// New returns a Hasher reading chunkSize bytes at a time.
// Values below one select DefaultChunkSize and values above MaxChunkSize
// are clamped to it.
func New(chunkSize int) *Hasher {
	return &Hasher{chunkSize: clampChunk(chunkSize)}
}

func clampChunk(n int) int {
	switch {
	case n < 1:
		return DefaultChunkSize
	case n > MaxChunkSize:
		return MaxChunkSize
	}
	return n
}

// ChunkSize returns the configured read size.
func (h *Hasher) ChunkSize() int {
	return h.chunkSize
}

// Hash returns the digest of the file at path. On failure the digest is
// empty and the error is an *IOFailure.
func (h *Hasher) Hash(path string) (digest string, retErr error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &IOFailure{Path: path, Err: err}
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && retErr == nil {
			digest, retErr = "", &IOFailure{Path: path, Err: closeErr}
		}
	}()

	digest, err = Sum(f, h.chunkSize)
	if err != nil {
		return "", &IOFailure{Path: path, Err: err}
	}
	return digest, nil
}

// Sum reads r to EOF in chunkSize pieces and returns the hex digest.
func Sum(r io.Reader, chunkSize int) (string, error) {
	h := sha256.New()
	buf := make([]byte, clampChunk(chunkSize))
	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// ValidDigest reports whether s is a lowercase hex SHA-256 digest.
func ValidDigest(s string) bool {
	if len(s) != DigestLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
