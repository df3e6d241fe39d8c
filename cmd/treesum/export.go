package main

import (
	"fmt"

	"github.com/jamesainslie/treesum/pkg/treesum/exporter"
	"github.com/jamesainslie/treesum/pkg/treesum/history"
	"github.com/jamesainslie/treesum/pkg/treesum/output"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a manifest of every file's digest",
	Long: `Hash every regular file under the target directory and write a
gzip-compressed JSON manifest mapping each relative path to its SHA-256
digest. Symbolic links and other special files are skipped. Files that
cannot be read are reported and left out of the manifest.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportDir  string
	exportFile string
)

func init() {
	exportCmd.Flags().StringVarP(&exportDir, "directory", "d", "", "target directory to hash (required)")
	exportCmd.Flags().StringVarP(&exportFile, "file", "f", "", "manifest file to write (required)")
	_ = exportCmd.MarkFlagRequired("directory")
	_ = exportCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(exportCmd)
}

// runExport is the export command handler.
func runExport(_ *cobra.Command, _ []string) error {
	chunkSize, err := app.cfg.ChunkBytes()
	if err != nil {
		return fmt.Errorf("invalid chunk size: %w", err)
	}

	log := app.logger.Component("exporter")
	log.Info("export requested", "directory", exportDir, "file", exportFile, "workers", app.cfg.Workers)

	opts := exporter.Options{
		Root:      exportDir,
		Workers:   app.cfg.Workers,
		ChunkSize: int(chunkSize),
		Logger:    app.logger,
	}

	var res *exporter.Result
	err = runWithProgress("treesum export", exportDir, exportProgress, func(report func(types.Progress)) error {
		opts.OnProgress = report
		exp, err := exporter.New(opts)
		if err != nil {
			return err
		}
		res, err = exp.ExportTo(exportFile)
		return err
	})
	if err != nil {
		if res != nil {
			return fmt.Errorf("writing manifest %s: %w", exportFile, err)
		}
		return err
	}

	rec := &history.Record{
		Operation: history.OpExport,
		Root:      res.Root,
		Manifest:  exportFile,
		Files:     res.Manifest.Len(),
		Failures:  len(res.Failures),
		Bytes:     res.TotalBytes,
		Elapsed:   res.Elapsed,
	}
	for _, failure := range res.Failures {
		rec.AddIssue(fmt.Sprintf("UNREADABLE: %s (%s)", failure.Path, failure.Error))
	}

	result := output.FromExport(res, exportFile)
	result.RunID = recordRun(rec)
	return render(result)
}

// exportProgress prints progress lines for a non-interactive export.
func exportProgress(p types.Progress) {
	switch p.Phase {
	case types.PhaseEnumerating:
		printVerbose("Scanning %s...", exportDir)
	case types.PhaseDispatching:
		printProgress("Found %d files to process.", p.Total)
	}
}
