package validator

import (
	"errors"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/treesum/pkg/treesum/exporter"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// exportTree writes a sample tree and returns its root and manifest.
func exportTree(t *testing.T) (string, manifest.Manifest) {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.txt":          "alpha",
		"b.txt":          "bravo",
		"nested/c.txt":   "charlie",
		"nested/d/e.txt": "echo",
	})

	exp, err := exporter.New(exporter.Options{Root: root})
	require.NoError(t, err)
	result, err := exp.Export()
	require.NoError(t, err)
	require.Equal(t, 4, result.Manifest.Len())
	return root, result.Manifest
}

type brokenHasher struct {
	broken string
	inner  *hasher.Hasher
}

func (h brokenHasher) Hash(path string) (string, error) {
	if strings.HasSuffix(filepath.ToSlash(path), h.broken) {
		return "", &hasher.IOFailure{Path: path, Err: os.ErrPermission}
	}
	return h.inner.Hash(path)
}

func TestDiscrepancy_String(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		d    Discrepancy
		want string
	}{
		{
			name: "missing",
			d:    Discrepancy{Kind: KindMissing, Path: "dir/a.txt"},
			want: "MISSING: dir/a.txt",
		},
		{
			name: "mismatch",
			d:    Discrepancy{Kind: KindMismatch, Path: "b.txt", Expected: "aaa", Actual: "bbb"},
			want: "HASH MISMATCH: b.txt (expected: aaa, got: bbb)",
		},
		{
			name: "mismatch with absent actual",
			d:    Discrepancy{Kind: KindMismatch, Path: "c.txt", Expected: "aaa"},
			want: "HASH MISMATCH: c.txt (expected: aaa, got: absent)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.String())
		})
	}
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "missing", KindMissing.String())
	assert.Equal(t, "mismatch", KindMismatch.String())
	assert.Equal(t, "unknown", Kind(7).String())
}

func TestValidate_CleanTree(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)

	v, err := New(Options{Root: root})
	require.NoError(t, err)
	rep, err := v.Validate(m)
	require.NoError(t, err)

	assert.True(t, rep.Clean())
	assert.Equal(t, 4, rep.Checked)
	assert.Zero(t, rep.Missing())
	assert.Zero(t, rep.Mismatched())
}

func TestValidate_DeletedFile(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	require.NoError(t, os.Remove(filepath.Join(root, "nested", "c.txt")))

	v, err := New(Options{Root: root})
	require.NoError(t, err)
	rep, err := v.Validate(m)
	require.NoError(t, err)

	require.Len(t, rep.Discrepancies, 1)
	assert.Equal(t, Discrepancy{Kind: KindMissing, Path: "nested/c.txt"}, rep.Discrepancies[0])
	assert.Equal(t, 1, rep.Missing())
	assert.Zero(t, rep.Mismatched())
}

func TestValidate_DirectoryReplacedByFile(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	nested := filepath.Join(root, "nested")
	require.NoError(t, os.RemoveAll(nested))
	require.NoError(t, os.WriteFile(nested, []byte("not a directory"), 0o644))

	v, err := New(Options{Root: root})
	require.NoError(t, err)
	rep, err := v.Validate(m)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.Missing())
	assert.Zero(t, rep.Mismatched())
	for _, d := range rep.Discrepancies {
		assert.Equal(t, KindMissing, d.Kind, d.Path)
		assert.True(t, strings.HasPrefix(d.Path, "nested/"), d.Path)
	}
}

func TestValidate_ModifiedFile(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	path := filepath.Join(root, "b.txt")
	require.NoError(t, os.WriteFile(path, []byte("bravo, changed"), 0o644))

	newDigest, err := hasher.New(0).Hash(path)
	require.NoError(t, err)

	v, err := New(Options{Root: root, Workers: 2})
	require.NoError(t, err)
	rep, err := v.Validate(m)
	require.NoError(t, err)

	require.Len(t, rep.Discrepancies, 1)
	d := rep.Discrepancies[0]
	assert.Equal(t, KindMismatch, d.Kind)
	assert.Equal(t, "b.txt", d.Path)
	assert.Equal(t, m["b.txt"], d.Expected)
	assert.Equal(t, newDigest, d.Actual)
}

func TestValidate_ExtraFilesIgnored(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	writeTree(t, root, map[string]string{"new.txt": "not in manifest"})

	v, err := New(Options{Root: root})
	require.NoError(t, err)
	rep, err := v.Validate(m)
	require.NoError(t, err)

	assert.True(t, rep.Clean())
}

func TestValidate_HashFailureIsMismatch(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)

	logPath := filepath.Join(t.TempDir(), "error.log")
	errorLog, err := logging.OpenErrorLog(logPath, nil)
	require.NoError(t, err)

	v, err := New(Options{
		Root:     root,
		Hasher:   brokenHasher{broken: "a.txt", inner: hasher.New(0)},
		ErrorLog: errorLog,
	})
	require.NoError(t, err)
	rep, err := v.Validate(m)
	require.NoError(t, err)
	require.NoError(t, errorLog.Close())

	require.Len(t, rep.Discrepancies, 1)
	d := rep.Discrepancies[0]
	assert.Equal(t, KindMismatch, d.Kind)
	assert.Equal(t, "a.txt", d.Path)
	assert.Empty(t, d.Actual)
	assert.Contains(t, d.Cause, "permission denied")
	assert.Zero(t, rep.Missing())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hash failure: a.txt")
	assert.Contains(t, string(data), "HASH MISMATCH: a.txt (expected: "+m["a.txt"]+", got: absent)")
}

func TestValidate_SortedDiscrepancies(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	require.NoError(t, os.Remove(filepath.Join(root, "nested", "d", "e.txt")))
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("changed"), 0o644))

	for _, workers := range []int{1, 4, 16} {
		v, err := New(Options{Root: root, Workers: workers})
		require.NoError(t, err)
		rep, err := v.Validate(m)
		require.NoError(t, err)

		paths := make([]string, 0, len(rep.Discrepancies))
		for _, d := range rep.Discrepancies {
			paths = append(paths, d.Path)
		}
		assert.Equal(t, []string{"a.txt", "b.txt", "nested/d/e.txt"}, paths, "workers=%d", workers)
		assert.Equal(t, 2, rep.Missing())
		assert.Equal(t, 1, rep.Mismatched())
	}
}

func TestValidate_ErrorLog(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	require.NoError(t, os.Remove(filepath.Join(root, "a.txt")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "nested", "c.txt"), []byte("changed"), 0o644))

	logPath := filepath.Join(t.TempDir(), "error.log")
	errorLog, err := logging.OpenErrorLog(logPath, nil)
	require.NoError(t, err)

	v, err := New(Options{Root: root, ErrorLog: errorLog})
	require.NoError(t, err)
	_, err = v.Validate(m)
	require.NoError(t, err)
	require.NoError(t, errorLog.Close())

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	joined := string(data)
	assert.Contains(t, joined, "MISSING: a.txt")
	assert.Contains(t, joined, "HASH MISMATCH: nested/c.txt (expected: "+m["nested/c.txt"])
	for _, line := range lines {
		assert.Contains(t, line, "ERRO")
	}
}

func TestValidate_DoesNotModifyInputs(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	require.NoError(t, os.Remove(filepath.Join(root, "b.txt")))
	before := maps.Clone(m)

	v, err := New(Options{Root: root})
	require.NoError(t, err)
	_, err = v.Validate(m)
	require.NoError(t, err)

	assert.True(t, before.Equal(m))
	_, err = os.Stat(filepath.Join(root, "b.txt"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestValidate_MissingRoot(t *testing.T) {
	t.Parallel()

	v, err := New(Options{Root: filepath.Join(t.TempDir(), "gone")})
	require.NoError(t, err)
	rep, err := v.Validate(manifest.New(0))

	assert.Nil(t, rep)
	var pre *types.PreconditionError
	assert.True(t, errors.As(err, &pre))
	assert.ErrorIs(t, err, types.ErrRootNotFound)
}

func TestValidateFile(t *testing.T) {
	t.Parallel()
	root, m := exportTree(t)
	manifestPath := filepath.Join(t.TempDir(), "manifest.json.gz")
	require.NoError(t, manifest.WriteFile(manifestPath, m))

	v, err := New(Options{Root: root})
	require.NoError(t, err)
	rep, err := v.ValidateFile(manifestPath)
	require.NoError(t, err)
	assert.True(t, rep.Clean())
	assert.Equal(t, 4, rep.Checked)
}

func TestValidateFile_Corrupt(t *testing.T) {
	t.Parallel()
	manifestPath := filepath.Join(t.TempDir(), "manifest.json.gz")
	require.NoError(t, os.WriteFile(manifestPath, []byte("definitely not gzip"), 0o644))

	var called bool
	v, err := New(Options{
		Root: t.TempDir(),
		OnProgress: func(p types.Progress) {
			if p.Phase == types.PhaseDispatching {
				called = true
			}
		},
	})
	require.NoError(t, err)

	rep, err := v.ValidateFile(manifestPath)
	assert.Nil(t, rep)
	assert.ErrorIs(t, err, manifest.ErrCorrupt)
	assert.False(t, called, "nothing should be dispatched for a corrupt manifest")
}

func TestNew_RejectsNegativeWorkers(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Root: t.TempDir(), Workers: -3})
	assert.ErrorIs(t, err, types.ErrInvalidWorkers)
}

func TestNew_RejectsOversizedChunk(t *testing.T) {
	t.Parallel()

	_, err := New(Options{Root: t.TempDir(), ChunkSize: hasher.MaxChunkSize + 1})
	assert.ErrorIs(t, err, hasher.ErrChunkSize)
}
