package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/klauspost/compress/gzip"
)

// ErrCorrupt is matched by every CorruptError.
var ErrCorrupt = errors.New("corrupt manifest")

// CorruptError reports a manifest that could not be read, decompressed or
// parsed as a flat path to digest object.
type CorruptError struct {
	Err error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt manifest: %v", e.Err)
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrCorrupt) match any CorruptError.
func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

// Encode serializes m as compact JSON with sorted keys and gzips it.
// Equal manifests encode to identical bytes.
func Encode(m Manifest) ([]byte, error) {
	if m == nil {
		m = Manifest{}
	}

	data, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip writer: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish gzip stream: %w", err)
	}

	return buf.Bytes(), nil
}

// Decode parses bytes produced by Encode. Any failure is a *CorruptError.
func Decode(b []byte) (Manifest, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, &CorruptError{Err: fmt.Errorf("decompress: %w", err)}
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, &CorruptError{Err: fmt.Errorf("decompress: %w", err)}
	}

	var raw map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &CorruptError{Err: fmt.Errorf("parse: %w", err)}
	}
	if raw == nil {
		return nil, &CorruptError{Err: errors.New("parse: not a JSON object")}
	}

	for p, digest := range raw {
		if err := checkPath(p); err != nil {
			return nil, &CorruptError{Err: err}
		}
		if !hasher.ValidDigest(digest) {
			return nil, &CorruptError{Err: fmt.Errorf("invalid digest for %q: %q", p, digest)}
		}
	}

	return Manifest(raw), nil
}

// checkPath rejects keys that are not clean relative slash paths, so a
// manifest can never point outside the root it is validated against.
func checkPath(p string) error {
	switch {
	case p == "":
		return errors.New("empty path")
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("absolute path %q", p)
	case filepath.Separator == '\\' && strings.Contains(p, `\`):
		return fmt.Errorf("path %q is not slash separated", p)
	case path.Clean(p) != p:
		return fmt.Errorf("path %q is not clean", p)
	case p == ".." || strings.HasPrefix(p, "../"):
		return fmt.Errorf("path %q escapes the root", p)
	}
	return nil
}

// WriteFile encodes m and writes it to filePath atomically.
func WriteFile(filePath string, m Manifest) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create manifest directory: %w", err)
		}
	}

	// Write atomically using a temp file and rename
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ReadFile reads and decodes the manifest at filePath. An unreadable file
// is reported as a *CorruptError as well.
func ReadFile(filePath string) (Manifest, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, &CorruptError{Err: fmt.Errorf("read %s: %w", filePath, err)}
	}
	return Decode(data)
}
