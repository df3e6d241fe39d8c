package main

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTree creates files under the environment's "data" directory.
func writeTree(t *testing.T, e *cliEnv, files map[string]string) string {
	t.Helper()
	root := e.path("data")
	for rel, content := range files {
		p := e.path("data", rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
	return root
}


func sampleFiles() map[string]string {
	return map[string]string{
		"a.txt":         "alpha",
		"b.txt":         "bravo",
		"nested/c.txt":  "charlie",
		"nested/d/e.md": "echo",
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if scanner.Text() != "" {
			lines = append(lines, scanner.Text())
		}
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestExport_WritesManifest(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	out := e.path("tree.json.gz")

	stdout, stderr, code := e.run("export", "-d", root, "-f", out, "-o", "plain", "--no-history")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "[INFO] Found 4 files to process.")
	assert.Contains(t, stdout, "[INFO] Export completed. Results saved to "+out)

	m, err := manifest.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt", "nested/c.txt", "nested/d/e.md"}, m.Paths())
}

func TestExport_MissingDirectory(t *testing.T) {
	e := newCLIEnv(t)
	out := e.path("tree.json.gz")

	_, stderr, code := e.run("export", "-d", e.path("nope"), "-f", out, "--no-history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")

	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "manifest should not be written")
}

func TestExport_RequiresFlags(t *testing.T) {
	e := newCLIEnv(t)

	_, stderr, code := e.run("export", "-d", e.dir)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "file")
}

func TestExport_RejectsNonPositiveThreads(t *testing.T) {
	for _, threads := range []string{"0", "-2"} {
		t.Run(threads, func(t *testing.T) {
			e := newCLIEnv(t)
			root := writeTree(t, e, sampleFiles())
			out := e.path("tree.json.gz")

			_, stderr, code := e.run("export", "-d", root, "-f", out, "-t", threads, "--no-history")
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, "workers")

			_, err := os.Stat(out)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestExport_RejectsOversizedChunkSize(t *testing.T) {
	for _, size := range []string{"1024T", "99999999T"} {
		t.Run(size, func(t *testing.T) {
			e := newCLIEnv(t)
			root := writeTree(t, e, sampleFiles())
			out := e.path("tree.json.gz")

			_, stderr, code := e.run("export", "-d", root, "-f", out, "--chunk-size", size, "--no-history")
			assert.Equal(t, 1, code)
			assert.Contains(t, stderr, "chunk_size")

			_, err := os.Stat(out)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestImport_CleanTree(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	out := e.path("tree.json.gz")

	_, stderr, code := e.run("export", "-d", root, "-f", out, "--no-history")
	require.Equal(t, 0, code, stderr)

	stdout, stderr, code := e.run("import", "-d", root, "-f", out, "-o", "plain", "--no-history")
	require.Equal(t, 0, code, stderr)

	assert.Contains(t, stdout, "[INFO] Starting validation...")
	assert.Contains(t, stdout, "[INFO] Validation completed. Errors found: 0")
	assert.Contains(t, stdout, "[INFO] All files are validated successfully.")
	assert.Empty(t, readLines(t, e.path("error.log")))
}

func TestImport_ReportsDiscrepancies(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	out := e.path("tree.json.gz")
	errLog := e.path("problems.log")

	_, stderr, code := e.run("export", "-d", root, "-f", out, "--no-history")
	require.Equal(t, 0, code, stderr)

	require.NoError(t, os.Remove(e.path("data", "a.txt")))
	require.NoError(t, os.WriteFile(e.path("data", "nested", "c.txt"), []byte("changed"), 0o644))
	require.NoError(t, os.WriteFile(e.path("data", "extra.txt"), []byte("new"), 0o644))

	stdout, stderr, code := e.run("import", "-d", root, "-f", out, "-l", errLog, "-o", "plain", "--no-history")
	assert.Equal(t, 0, code, "discrepancies must not change the exit status")

	assert.Contains(t, stdout, "[INFO] Validation completed. Errors found: 2")
	assert.Contains(t, stdout, "[ERROR] Validation errors were logged to "+errLog)
	assert.Contains(t, stderr, "MISSING: a.txt")
	assert.Contains(t, stderr, "HASH MISMATCH: nested/c.txt")
	assert.NotContains(t, stderr, "extra.txt")

	lines := readLines(t, errLog)
	require.Len(t, lines, 2)
	mismatch := regexp.MustCompile(`HASH MISMATCH: nested/c\.txt \(expected: [0-9a-f]{64}, got: [0-9a-f]{64}\)$`)
	var sawMissing, sawMismatch bool
	for _, line := range lines {
		assert.Contains(t, line, "ERRO")
		sawMissing = sawMissing || strings.HasSuffix(line, "MISSING: a.txt")
		sawMismatch = sawMismatch || mismatch.MatchString(line)
	}
	assert.True(t, sawMissing, "missing line not logged: %v", lines)
	assert.True(t, sawMismatch, "mismatch line not logged: %v", lines)
}

func TestImport_AppendsToErrorLog(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	out := e.path("tree.json.gz")

	_, stderr, code := e.run("export", "-d", root, "-f", out, "--no-history")
	require.Equal(t, 0, code, stderr)
	require.NoError(t, os.Remove(e.path("data", "b.txt")))

	for i := 0; i < 2; i++ {
		_, stderr, code = e.run("import", "-d", root, "-f", out, "--no-history")
		require.Equal(t, 0, code, stderr)
	}

	assert.Len(t, readLines(t, e.path("error.log")), 2)
}

func TestImport_CorruptManifest(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	bad := e.path("bad.json.gz")
	require.NoError(t, os.WriteFile(bad, []byte("not a manifest"), 0o644))

	stdout, stderr, code := e.run("import", "-d", root, "-f", bad, "-o", "plain", "--no-history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")
	assert.NotContains(t, stdout, "Validation completed")

	lines := readLines(t, e.path("error.log"))
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "Error reading import file "+bad)
}

func TestImport_MissingDirectory(t *testing.T) {
	e := newCLIEnv(t)
	out := e.path("tree.json.gz")
	require.NoError(t, manifest.WriteFile(out, manifest.New(0)))

	_, stderr, code := e.run("import", "-d", e.path("nope"), "-f", out, "--no-history")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Error:")

	_, err := os.Stat(e.path("error.log"))
	assert.True(t, os.IsNotExist(err), "error log should not be created")
}

func TestImport_JSONOutput(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	out := e.path("tree.json.gz")

	_, stderr, code := e.run("export", "-d", root, "-f", out, "--no-history")
	require.Equal(t, 0, code, stderr)
	require.NoError(t, os.Remove(e.path("data", "nested", "d", "e.md")))

	stdout, stderr, code := e.run("import", "-d", root, "-f", out, "-o", "json", "--no-history")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "[INFO] Starting validation...")

	var doc struct {
		Mode  string `json:"mode"`
		Stats struct {
			Checked int `json:"checked"`
			Missing int `json:"missing"`
		} `json:"stats"`
		Discrepancies []struct {
			Kind string `json:"kind"`
			Path string `json:"path"`
		} `json:"discrepancies"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc), stdout)
	assert.Equal(t, "import", doc.Mode)
	assert.Equal(t, 4, doc.Stats.Checked)
	assert.Equal(t, 1, doc.Stats.Missing)
	require.Len(t, doc.Discrepancies, 1)
	assert.Equal(t, "nested/d/e.md", doc.Discrepancies[0].Path)
}

func TestHistory_RecordsRuns(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	out := e.path("tree.json.gz")

	stdout, stderr, code := e.run("export", "-d", root, "-f", out, "-o", "plain")
	require.Equal(t, 0, code, stderr)

	match := regexp.MustCompile(`Run recorded as (export-\S+)`).FindStringSubmatch(stdout)
	require.Len(t, match, 2, stdout)
	id := match[1]

	stdout, stderr, code = e.run("history")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, id)
	assert.Contains(t, stdout, "export")

	stdout, stderr, code = e.run("history", "show", id)
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Operation:  export")
	assert.Contains(t, stdout, "Files:      4")

	_, stderr, code = e.run("history", "show", "export-missing")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "no history entry")

	stdout, stderr, code = e.run("history", "clean")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Removed 0 entries.")
}

func TestHistory_NoHistoryFlag(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())

	stdout, stderr, code := e.run("export", "-d", root, "-f", e.path("tree.json.gz"), "-o", "plain", "--no-history")
	require.Equal(t, 0, code, stderr)
	assert.NotContains(t, stdout, "Run recorded as")

	stdout, stderr, code = e.run("history")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "No history entries found.")
}

func TestVersion(t *testing.T) {
	e := newCLIEnv(t)

	stdout, _, code := e.run("version")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "treesum dev")
}

func TestConfig_InitAndShow(t *testing.T) {
	e := newCLIEnv(t)
	cfgPath := e.path("xdg", "config", "treesum", "config.yaml")

	stdout, stderr, code := e.run("config", "path")
	require.Equal(t, 0, code, stderr)
	assert.Equal(t, cfgPath, strings.TrimSpace(stdout))

	stdout, stderr, code = e.run("config", "init")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Created default config file: "+cfgPath)

	stdout, stderr, code = e.run("config", "init")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Config file already exists")

	stdout, stderr, code = e.run("config", "show")
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stdout, "Config file: "+cfgPath)
	assert.Contains(t, stdout, "workers:                4")
	assert.Contains(t, stdout, "error_log:              error.log")
}

func TestConfig_FileSetsWorkers(t *testing.T) {
	e := newCLIEnv(t)
	root := writeTree(t, e, sampleFiles())
	cfgPath := e.path("custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("workers: 0\n"), 0o644))

	_, stderr, code := e.run("--config", cfgPath, "export", "-d", root, "-f", e.path("m.json.gz"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stripANSI(stderr), "workers")
}
