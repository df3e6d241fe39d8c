package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/jamesainslie/treesum/pkg/treesum/history"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/manifest"
	"github.com/jamesainslie/treesum/pkg/treesum/output"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/jamesainslie/treesum/pkg/treesum/validator"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Verify a directory against a manifest",
	Long: `Read a manifest written by 'treesum export' and check every entry
against the target directory. Files that are missing or whose digest
differs are printed to stderr and appended to the error log. Files present
in the directory but absent from the manifest are ignored.

Discrepancies do not change the exit status; a missing directory or an
unreadable manifest does.`,
	Args: cobra.NoArgs,
	RunE: runImport,
}

var (
	importDir  string
	importFile string
)

func init() {
	importCmd.Flags().StringVarP(&importDir, "directory", "d", "", "target directory to verify (required)")
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "manifest file to read (required)")
	importCmd.Flags().StringP("log", "l", "error.log", "error log to append discrepancies to")
	_ = importCmd.MarkFlagRequired("directory")
	_ = importCmd.MarkFlagRequired("file")

	_ = viper.BindPFlag("error_log", importCmd.Flags().Lookup("log"))

	rootCmd.AddCommand(importCmd)
}

// runImport is the import command handler.
func runImport(_ *cobra.Command, _ []string) error {
	// The directory is checked before the error log is created.
	if _, err := types.ResolveRoot(importDir); err != nil {
		return err
	}

	chunkSize, err := app.cfg.ChunkBytes()
	if err != nil {
		return fmt.Errorf("invalid chunk size: %w", err)
	}

	// The live view owns the terminal, so discrepancies are echoed to
	// stderr after it closes instead of as they are logged.
	live := liveProgress()
	var console io.Writer = stderr
	if live {
		console = nil
	}

	errorLogPath := app.cfg.ErrorLog
	errorLog, err := logging.OpenErrorLog(errorLogPath, console)
	if err != nil {
		return err
	}
	defer func() {
		if err := errorLog.Close(); err != nil {
			app.logger.Warn("closing error log", "path", errorLogPath, "error", err)
		}
	}()

	log := app.logger.Component("validator")
	log.Info("import requested", "directory", importDir, "file", importFile, "error_log", errorLogPath)

	opts := validator.Options{
		Root:      importDir,
		Workers:   app.cfg.Workers,
		ChunkSize: int(chunkSize),
		Logger:    app.logger,
		ErrorLog:  errorLog,
	}

	var rep *validator.Report
	err = runWithProgress("treesum import", importDir, importProgress, func(report func(types.Progress)) error {
		opts.OnProgress = report
		v, err := validator.New(opts)
		if err != nil {
			return err
		}
		rep, err = v.ValidateFile(importFile)
		return err
	})
	if err != nil {
		if errors.Is(err, manifest.ErrCorrupt) {
			errorLog.Error(fmt.Sprintf("Error reading import file %s: %v", importFile, err))
		}
		return err
	}

	if live {
		for _, d := range rep.Discrepancies {
			fmt.Fprintf(stderr, "[ERROR] %s\n", d)
		}
	}

	rec := &history.Record{
		Operation: history.OpImport,
		Root:      rep.Root,
		Manifest:  importFile,
		ErrorLog:  errorLogPath,
		Files:     rep.Checked,
		Missing:   rep.Missing(),
		Mismatch:  rep.Mismatched(),
		Bytes:     rep.TotalBytes,
		Elapsed:   rep.Elapsed,
	}
	for _, d := range rep.Discrepancies {
		rec.AddIssue(d.String())
	}

	result := output.FromReport(rep, importFile, errorLogPath)
	result.RunID = recordRun(rec)
	return render(result)
}

// importProgress prints progress lines for a non-interactive import.
func importProgress(p types.Progress) {
	switch p.Phase {
	case types.PhaseLoading:
		printVerbose("Loading manifest %s...", importFile)
	case types.PhaseDispatching:
		printProgress("Starting validation...")
	}
}
