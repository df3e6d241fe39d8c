package output

import (
	"bytes"
	"fmt"

	"github.com/jamesainslie/treesum/pkg/treesum/types"
)

// PlainFormatter writes bracketed [INFO]/[ERROR] lines with no styling,
// suitable for scripting and log capture.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	switch r.Mode {
	case ModeExport:
		f.formatExport(w, r)
	case ModeImport:
		f.formatImport(w, r)
	default:
		return fmt.Errorf("unknown result mode: %q", r.Mode)
	}
	if r.RunID != "" {
		fmt.Fprintf(w, "[INFO] Run recorded as %s\n", r.RunID)
	}
	return nil
}

func (f *PlainFormatter) formatExport(w *bytes.Buffer, r *Result) {
	for _, failure := range r.Failures {
		fmt.Fprintf(w, "[ERROR] Could not hash %s: %s\n", failure.Path, failure.Error)
	}
	fmt.Fprintf(w, "[INFO] Hashed %d of %d files (%s) in %s.\n",
		r.Hashed, r.Discovered, types.FormatSize(r.TotalBytes), formatDuration(r.Duration))
	fmt.Fprintf(w, "[INFO] Export completed. Results saved to %s\n", r.ManifestPath)
}

func (f *PlainFormatter) formatImport(w *bytes.Buffer, r *Result) {
	fmt.Fprintf(w, "[INFO] Validation completed. Errors found: %d\n", len(r.Discrepancies))
	fmt.Fprintf(w, "[INFO] Checked %d files (%s) in %s: %d missing, %d mismatched.\n",
		r.Checked, types.FormatSize(r.TotalBytes), formatDuration(r.Duration), r.Missing(), r.Mismatched())
	if len(r.Discrepancies) > 0 {
		fmt.Fprintf(w, "[ERROR] Validation errors were logged to %s\n", r.ErrorLog)
	} else {
		w.WriteString("[INFO] All files are validated successfully.\n")
	}
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)
