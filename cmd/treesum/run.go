package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jamesainslie/treesum/cmd/treesum/tui"
	"github.com/jamesainslie/treesum/pkg/treesum/history"
	"github.com/jamesainslie/treesum/pkg/treesum/output"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/mattn/go-isatty"
	"github.com/spf13/viper"
)

// liveProgress reports whether the interactive progress view should be
// shown instead of progress lines.
func liveProgress() bool {
	if viper.GetBool("no_interactive") || getQuiet() || machineOutput() {
		return false
	}
	f, ok := stderr.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// runWithProgress runs work with the live progress view on an interactive
// terminal, and with lines as its progress callback otherwise.
func runWithProgress(title, root string, lines func(types.Progress), work func(report func(types.Progress)) error) error {
	if !liveProgress() {
		return work(lines)
	}
	return tui.Run(title, root, stderr, work)
}

// recordRun stores rec in the history database and returns its ID.
// History is best effort: failures are logged and an empty ID returned.
func recordRun(rec *history.Record) string {
	if !app.cfg.History.Enabled || viper.GetBool("no_history") {
		return ""
	}

	log := app.logger.Component("history")
	store, err := history.Open(app.cfg.History.Path)
	if err != nil {
		log.Warn("history store unavailable", "path", app.cfg.History.Path, "error", err)
		printVerbose("History not recorded: %v", err)
		return ""
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing history store", "error", err)
		}
	}()

	if err := store.Log(rec); err != nil {
		log.Warn("failed to record run", "error", err)
		printVerbose("History not recorded: %v", err)
		return ""
	}
	log.Debug("run recorded", "id", rec.ID)
	return rec.ID
}

// render writes the run summary in the configured output format.
func render(result *output.Result) error {
	if getQuiet() && !machineOutput() {
		return nil
	}

	name := app.cfg.Output
	formatter, err := output.Get(name)
	if err != nil {
		return fmt.Errorf("unknown output format %q: available formats are %v", name, output.Available())
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, result); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}
