package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/jamesainslie/treesum/pkg/treesum/config"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// stdout and stderr are where command output goes.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// appState is built once per invocation by initializeLogging.
type appState struct {
	cfg    *config.Config
	logger *logging.Logger
}

var (
	cfgFile string
	app     *appState
	rootCmd = &cobra.Command{
		Use:   "treesum",
		Short: "Fingerprint a directory tree and verify it later",
		Long: `treesum records a SHA-256 digest for every regular file in a directory
tree and later checks the tree against that record.

'export' writes a gzip-compressed JSON manifest mapping each relative path
to its digest. 'import' reads a manifest back and reports files that are
missing or whose content changed, appending each problem to an error log.

Examples:
  treesum export -d ./photos -f photos.json.gz
  treesum import -d ./photos -f photos.json.gz -l photos-errors.log
  treesum export -d /srv/data -f data.json.gz -t 16
  treesum history                    # Past runs
  treesum config show                # Effective configuration`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: initializeLogging,
	}
)

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ~/.config/treesum/config.yaml)")
	rootCmd.PersistentFlags().IntP("threads", "t", config.DefaultWorkers, "number of files hashed concurrently")
	rootCmd.PersistentFlags().String("chunk-size", config.DefaultChunkSize, "read size used while hashing (e.g. 8KiB, 1MiB)")
	rootCmd.PersistentFlags().StringP("output", "o", config.DefaultOutput, "summary format: pretty, plain, json, yaml")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "minimal output")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug output")
	rootCmd.PersistentFlags().Bool("no-history", false, "do not record this run in the history store")
	rootCmd.PersistentFlags().BoolP("no-interactive", "n", false, "disable the live progress view, print progress lines")

	// Bind flags to viper
	_ = viper.BindPFlag("workers", rootCmd.PersistentFlags().Lookup("threads"))
	_ = viper.BindPFlag("chunk_size", rootCmd.PersistentFlags().Lookup("chunk-size"))
	_ = viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	_ = viper.BindPFlag("quiet", rootCmd.PersistentFlags().Lookup("quiet"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("no_history", rootCmd.PersistentFlags().Lookup("no-history"))
	_ = viper.BindPFlag("no_interactive", rootCmd.PersistentFlags().Lookup("no-interactive"))
}

// Execute runs the root command through fang, which prints any error, and
// closes the application log.
func Execute(ctx context.Context) error {
	err := fang.Execute(ctx, rootCmd,
		fang.WithVersion(version),
		fang.WithCommit(commit),
		fang.WithErrorHandler(printCommandError),
	)
	if closeErr := closeLogging(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

// skipBootstrap replaces the logging hooks for commands that must work with
// a broken or missing configuration.
func skipBootstrap(_ *cobra.Command, _ []string) error {
	return nil
}

// getVerbose returns true if verbose mode is enabled.
func getVerbose() bool {
	return viper.GetBool("verbose")
}

// getQuiet returns true if quiet mode is enabled.
func getQuiet() bool {
	return viper.GetBool("quiet")
}

// machineOutput reports whether stdout carries a JSON or YAML document.
func machineOutput() bool {
	switch viper.GetString("output") {
	case "json", "yaml":
		return true
	default:
		return false
	}
}

// printVerbose prints a message if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message if quiet mode is not enabled.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(stdout, format+"\n", args...)
	}
}

// printProgress prints a progress line. It goes to stderr when stdout
// carries a machine-readable document.
func printProgress(format string, args ...interface{}) {
	if getQuiet() {
		return
	}
	w := stdout
	if machineOutput() {
		w = stderr
	}
	fmt.Fprintf(w, "[INFO] "+format+"\n", args...)
}

// printCommandError is the fang error handler. Errors stay on one plain
// line so scripts can match them.
func printCommandError(w io.Writer, _ fang.Styles, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
}
