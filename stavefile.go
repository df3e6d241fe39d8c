//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
)

// Default target when running `stave` with no arguments.
var Default = Build

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"i": Install,
	"s": Smoke,
	"c": Clean,
}

const (
	binaryName = "treesum"
	mainPkg    = "./cmd/treesum"
	binDir     = "bin"
)

// All runs lint, tests, the build, and the smoke test.
func All() error {
	st.Deps(Lint, Test)
	st.Deps(Build)
	st.Deps(Smoke)
	return nil
}

// Build compiles the treesum binary.
func Build() error {
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return fmt.Errorf("creating bin directory: %w", err)
	}
	return sh.RunV("go", "build", "-ldflags", buildLdflags(), "-o", binaryPath(), mainPkg)
}

// Install builds and copies treesum to GOBIN, GOPATH/bin, or /usr/local/bin.
func Install() error {
	st.Deps(Build)

	dir, err := installDir()
	if err != nil {
		return err
	}
	dst := filepath.Join(dir, filepath.Base(binaryPath()))

	if st.Verbose() {
		fmt.Printf("Installing %s to %s\n", binaryPath(), dst)
	}
	return sh.Copy(dst, binaryPath())
}

// Uninstall removes the installed treesum binary.
func Uninstall() error {
	dir, err := installDir()
	if err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(binaryPath()))

	if _, err := os.Stat(target); os.IsNotExist(err) {
		if st.Verbose() {
			fmt.Printf("Binary not found at %s, nothing to uninstall\n", target)
		}
		return nil
	}

	if st.Verbose() {
		fmt.Printf("Removing %s\n", target)
	}
	return os.Remove(target)
}

// Test runs all tests with race detection and coverage.
func Test() error {
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// Smoke exports the pkg tree with the built binary and validates it again.
func Smoke() error {
	st.Deps(Build)

	tmp, err := os.MkdirTemp("", "treesum-smoke-")
	if err != nil {
		return fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(tmp)

	manifest := filepath.Join(tmp, "pkg.json.gz")
	errorLog := filepath.Join(tmp, "error.log")
	bin := binaryPath()

	if err := sh.RunV(bin, "export", "-d", "pkg", "-f", manifest, "-o", "plain", "--no-history"); err != nil {
		return fmt.Errorf("smoke export: %w", err)
	}
	if err := sh.RunV(bin, "import", "-d", "pkg", "-f", manifest, "-l", errorLog, "-o", "plain", "--no-history"); err != nil {
		return fmt.Errorf("smoke import: %w", err)
	}

	info, err := os.Stat(errorLog)
	if err != nil {
		return fmt.Errorf("smoke import did not create %s: %w", errorLog, err)
	}
	if info.Size() != 0 {
		return fmt.Errorf("smoke import reported discrepancies in an unchanged tree")
	}
	return nil
}

// Lint runs golangci-lint.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Clean removes build artifacts.
func Clean() error {
	if st.Verbose() {
		fmt.Printf("Removing %s/\n", binDir)
	}
	return sh.Rm(binDir + "/")
}

// Fmt formats all Go code.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("running gofmt: %w", err)
	}
	return sh.Run("goimports", "-w", ".")
}

// Tidy runs go mod tidy.
func Tidy() error {
	return sh.RunV("go", "mod", "tidy")
}

// binaryPath returns the build output path for the current platform.
func binaryPath() string {
	p := filepath.Join(binDir, binaryName)
	if runtime.GOOS == "windows" {
		p += ".exe"
	}
	return p
}

// installDir resolves where Install places the binary.
func installDir() (string, error) {
	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return "", fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin != "" {
		return bin, nil
	}

	gopath, err := sh.Output(gocmd, "env", "GOPATH")
	if err != nil {
		return "", fmt.Errorf("determining GOPATH: %w", err)
	}
	if gopath == "" {
		return "/usr/local/bin", nil
	}
	return filepath.Join(gopath, "bin"), nil
}

// buildLdflags returns ldflags for version injection.
func buildLdflags() string {
	version := "dev"
	commit := "unknown"
	date := time.Now().Format(time.RFC3339)

	if v, err := sh.Output("git", "describe", "--tags", "--always"); err == nil && v != "" {
		version = strings.TrimSpace(v)
	}

	if c, err := sh.Output("git", "rev-parse", "--short", "HEAD"); err == nil && c != "" {
		commit = strings.TrimSpace(c)
	}

	return fmt.Sprintf(
		"-X main.version=%s -X main.commit=%s -X main.date=%s",
		version, commit, date,
	)
}
