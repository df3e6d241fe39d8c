package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jamesainslie/treesum/pkg/treesum/config"
	"github.com/jamesainslie/treesum/pkg/treesum/history"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View past export and import runs",
	Long: `View the history of export and import runs.

Each run is recorded with its directory, manifest, file counts, and the
first problems it found. Use --no-history to skip recording a run.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show details of a recorded run",
	Long:  `Display the summary and recorded problems of a run by its ID.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove old history entries",
	Long:  `Remove history entries older than history.retention_days.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryClean,
}

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "maximum number of entries to show")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyCleanCmd)
	rootCmd.AddCommand(historyCmd)
}

// openHistory opens the configured history store.
func openHistory() (*history.Store, error) {
	store, err := history.Open(app.cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, nil
}

// runHistory lists recent runs.
func runHistory(_ *cobra.Command, _ []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if len(records) == 0 {
		printInfo("No history entries found.")
		printInfo("Run 'treesum export -d <dir> -f <manifest>' to record one.")
		return nil
	}

	fmt.Fprintf(stdout, "\n%-36s  %-20s  %-7s  %-8s  %-10s  %s\n", "ID", "TIME", "TYPE", "FILES", "SIZE", "PROBLEMS")
	fmt.Fprintln(stdout, strings.Repeat("-", 100))

	for _, rec := range records {
		fmt.Fprintf(stdout, "%-36s  %-20s  %-7s  %-8d  %-10s  %d\n",
			truncateString(rec.ID, 36),
			rec.Timestamp.Local().Format("2006-01-02 15:04:05"),
			rec.Operation,
			rec.Files,
			types.FormatSize(rec.Bytes),
			problems(&rec),
		)
	}

	fmt.Fprintln(stdout, strings.Repeat("-", 100))
	fmt.Fprintf(stdout, "\nShowing %d entries. Use --limit to see more.\n", len(records))
	fmt.Fprintln(stdout, "Use 'treesum history show <id>' for details on a specific entry.")

	return nil
}

// runHistoryShow displays one recorded run.
func runHistoryShow(_ *cobra.Command, args []string) error {
	id := args[0]

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	rec, err := store.Get(id)
	if errors.Is(err, history.ErrNotFound) {
		return fmt.Errorf("no history entry with id %q", id)
	}
	if err != nil {
		return fmt.Errorf("failed to get entry: %w", err)
	}

	fmt.Fprintln(stdout, "\nRun Details")
	fmt.Fprintln(stdout, strings.Repeat("=", 60))
	fmt.Fprintf(stdout, "ID:         %s\n", rec.ID)
	fmt.Fprintf(stdout, "Timestamp:  %s\n", rec.Timestamp.Local().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(stdout, "Operation:  %s\n", rec.Operation)
	fmt.Fprintf(stdout, "Directory:  %s\n", rec.Root)
	fmt.Fprintf(stdout, "Manifest:   %s\n", rec.Manifest)
	if rec.ErrorLog != "" {
		fmt.Fprintf(stdout, "Error log:  %s\n", rec.ErrorLog)
	}
	fmt.Fprintf(stdout, "Files:      %d\n", rec.Files)
	fmt.Fprintf(stdout, "Total Size: %s\n", types.FormatSize(rec.Bytes))
	fmt.Fprintf(stdout, "Elapsed:    %s\n", rec.Elapsed.Round(time.Millisecond))

	switch rec.Operation {
	case history.OpExport:
		fmt.Fprintf(stdout, "Unreadable: %d\n", rec.Failures)
	case history.OpImport:
		fmt.Fprintf(stdout, "Missing:    %d\n", rec.Missing)
		fmt.Fprintf(stdout, "Mismatched: %d\n", rec.Mismatch)
	}

	if len(rec.Issues) > 0 {
		fmt.Fprintln(stdout, "\nProblems:")
		fmt.Fprintln(stdout, strings.Repeat("-", 60))
		for _, line := range rec.Issues {
			fmt.Fprintln(stdout, line)
		}
		if rec.Truncated > 0 {
			fmt.Fprintf(stdout, "\n... and %d more\n", rec.Truncated)
		}
	}

	return nil
}

// runHistoryClean removes entries older than the retention period.
func runHistoryClean(_ *cobra.Command, _ []string) error {
	retentionDays := app.cfg.History.RetentionDays
	if retentionDays <= 0 {
		retentionDays = config.DefaultRetentionDays
	}

	store, err := openHistory()
	if err != nil {
		return err
	}
	defer store.Close()

	printInfo("Cleaning history entries older than %d days...", retentionDays)

	removed, err := store.Cleanup(retentionDays)
	if err != nil {
		return fmt.Errorf("failed to clean history: %w", err)
	}

	printInfo("Removed %d entries.", removed)
	return nil
}

// problems returns the failure or discrepancy count of a run.
func problems(rec *history.Record) int {
	if rec.Operation == history.OpExport {
		return rec.Failures
	}
	return rec.Discrepancies()
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
