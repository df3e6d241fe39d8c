package logging_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jamesainslie/treesum/pkg/treesum/logging"
)

func countPrefixed(t *testing.T, dir, prefix string) int {
	t.Helper()
	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	n := 0
	for _, f := range files {
		if strings.HasPrefix(f.Name(), prefix) && strings.HasSuffix(f.Name(), ".log") {
			n++
		}
	}
	return n
}

func TestRotationBySize(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "size_rotate.log")

	writer, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{
		MaxSize:    512, // 512 bytes - small for testing
		MaxAge:     7,
		MaxBackups: 3,
		Daily:      false,
	})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	for i := 0; i < 20; i++ {
		msg := strings.Repeat("x", 50) + "\n"
		if _, writeErr := writer.Write([]byte(msg)); writeErr != nil {
			t.Fatalf("Write() error = %v", writeErr)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if n := countPrefixed(t, tempDir, "size_rotate"); n < 2 {
		t.Errorf("expected at least 2 log files after rotation, got %d", n)
	}
}

func TestRotationMaxBackups(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "backup_limit.log")

	maxBackups := 2
	writer, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{
		MaxSize:    256,
		MaxAge:     7,
		MaxBackups: maxBackups,
	})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}

	for i := 0; i < 50; i++ {
		msg := strings.Repeat("y", 30) + "\n"
		if _, writeErr := writer.Write([]byte(msg)); writeErr != nil {
			t.Fatalf("Write() error = %v", writeErr)
		}
	}

	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Should have current + MaxBackups files at most
	if n := countPrefixed(t, tempDir, "backup_limit"); n > maxBackups+1 {
		t.Errorf("expected at most %d log files, got %d", maxBackups+1, n)
	}
}

func TestAppendWriter_NeverRotates(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "append_only.log")

	writer, err := logging.OpenAppend(logPath)
	if err != nil {
		t.Fatalf("OpenAppend() error = %v", err)
	}

	for i := 0; i < 100; i++ {
		if _, err := writer.Write([]byte(strings.Repeat("z", 99) + "\n")); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if n := countPrefixed(t, tempDir, "append_only"); n != 1 {
		t.Errorf("expected a single log file, got %d", n)
	}
	info, err := os.Stat(logPath)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 100*100 {
		t.Errorf("log size = %d, want %d", info.Size(), 100*100)
	}
}

func TestAppendWriter_AppendsToExisting(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "nested", "existing.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(logPath, []byte("first\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	writer, err := logging.OpenAppend(logPath)
	if err != nil {
		t.Fatalf("OpenAppend() error = %v", err)
	}
	if writer.Path() != logPath {
		t.Errorf("Path() = %q, want %q", writer.Path(), logPath)
	}
	if _, err := writer.Write([]byte("second\n")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "first\nsecond\n" {
		t.Errorf("content = %q, want both lines", data)
	}
}

func TestAppendWriter_WriteAfterClose(t *testing.T) {
	t.Parallel()

	writer, err := logging.OpenAppend(filepath.Join(t.TempDir(), "closed.log"))
	if err != nil {
		t.Fatalf("OpenAppend() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, err := writer.Write([]byte("late\n")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write() after Close() error = %v, want os.ErrClosed", err)
	}
}

func TestRotationPrunesByAge(t *testing.T) {
	t.Parallel()

	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "aged.log")
	stale := filepath.Join(tempDir, "aged-20200101T000000.000000000.log")
	fresh := filepath.Join(tempDir, "aged-"+time.Now().UTC().Format("20060102T150405.000000000")+".log")
	unrelated := filepath.Join(tempDir, "aged-notes.log")
	for _, p := range []string{stale, fresh, unrelated} {
		if err := os.WriteFile(p, []byte("old\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	writer, err := logging.NewRotatingWriter(logPath, logging.RotationConfig{MaxAge: 7})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	t.Cleanup(func() { _ = writer.Close() })

	if _, err := os.Stat(stale); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("stale backup should be pruned, stat error = %v", err)
	}
	for _, p := range []string{fresh, unrelated} {
		if _, err := os.Stat(p); err != nil {
			t.Errorf("%s should be kept: %v", filepath.Base(p), err)
		}
	}
}

func TestRotatingWriter_WriteAfterClose(t *testing.T) {
	t.Parallel()

	writer, err := logging.NewRotatingWriter(filepath.Join(t.TempDir(), "closed.log"), logging.RotationConfig{})
	if err != nil {
		t.Fatalf("NewRotatingWriter() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
	if _, err := writer.Write([]byte("late\n")); !errors.Is(err, os.ErrClosed) {
		t.Errorf("Write() after Close() error = %v, want os.ErrClosed", err)
	}
}
