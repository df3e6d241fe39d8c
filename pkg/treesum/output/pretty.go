package output

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/jamesainslie/treesum/pkg/treesum/validator"
)

// maxPrettyRows bounds the rows listed before the output is summarised.
const maxPrettyRows = 50

// PrettyFormatter formats output with colors and styling using lipgloss.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	if r.Mode != ModeExport && r.Mode != ModeImport {
		return fmt.Errorf("unknown result mode: %q", r.Mode)
	}

	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	if r.Mode == ModeExport {
		w.WriteString(f.formatFailures(r))
	} else {
		w.WriteString(f.formatDiscrepancies(r))
	}

	w.WriteString(f.formatFooter(r))
	w.WriteString("\n")
	return nil
}

// formatHeader builds the header box with run metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	title := "Export"
	manifestLabel := "Manifest:"
	if r.Mode == ModeImport {
		title = "Import"
	}

	lines := []string{
		TitleStyle.Render(title),
		LabelStyle.Render("Root:") + " " + ValueStyle.Render(r.Root),
		LabelStyle.Render(manifestLabel) + " " + ValueStyle.Render(r.ManifestPath),
	}
	if r.Mode == ModeImport && r.ErrorLog != "" {
		lines = append(lines, LabelStyle.Render("Error log:")+" "+ValueStyle.Render(r.ErrorLog))
	}
	if r.RunID != "" {
		lines = append(lines, LabelStyle.Render("Run:")+" "+MutedStyle.Render(r.RunID))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatFailures lists files skipped during export.
func (f *PrettyFormatter) formatFailures(r *Result) string {
	if len(r.Failures) == 0 {
		return SuccessStyle.Render("  Every file was hashed") + "\n"
	}

	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render(fmt.Sprintf("  Skipped %d unreadable files:", len(r.Failures))))
	sb.WriteString("\n")
	for i, failure := range r.Failures {
		if i == maxPrettyRows {
			sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more", len(r.Failures)-maxPrettyRows)))
			sb.WriteString("\n")
			break
		}
		sb.WriteString(fmt.Sprintf("  %s  %s\n", PathStyle.Render(failure.Path), MutedStyle.Render(failure.Error)))
	}
	return sb.String()
}

// formatDiscrepancies lists import discrepancies in path order.
func (f *PrettyFormatter) formatDiscrepancies(r *Result) string {
	if len(r.Discrepancies) == 0 {
		return SuccessStyle.Render("  All files are validated successfully") + "\n"
	}

	var sb strings.Builder
	for i, d := range r.Discrepancies {
		if i == maxPrettyRows {
			sb.WriteString(MutedStyle.Render(fmt.Sprintf("  ... and %d more, see %s", len(r.Discrepancies)-maxPrettyRows, r.ErrorLog)))
			sb.WriteString("\n")
			break
		}

		kind := "MISSING "
		detail := ""
		if d.Kind == validator.KindMismatch {
			kind = "MISMATCH"
			actual := d.Actual
			if actual == "" {
				actual = "absent"
			}
			detail = MutedStyle.Render(fmt.Sprintf(" expected %s, got %s", shortDigest(d.Expected), shortDigest(actual)))
		}
		sb.WriteString(fmt.Sprintf("  %s  %s%s\n", KindStyle.Render(kind), PathStyle.Render(d.Path), detail))
	}
	return sb.String()
}

// formatFooter builds the footer box with counts and totals.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	var parts []string

	if r.Mode == ModeExport {
		parts = append(parts,
			LabelStyle.Render("Files:")+" "+ValueStyle.Render(fmt.Sprintf("%d/%d", r.Hashed, r.Discovered)),
		)
		if len(r.Failures) > 0 {
			parts = append(parts, WarningStyle.Render(fmt.Sprintf("%d skipped", len(r.Failures))))
		}
	} else {
		parts = append(parts, LabelStyle.Render("Checked:")+" "+ValueStyle.Render(fmt.Sprintf("%d", r.Checked)))
		if len(r.Discrepancies) == 0 {
			parts = append(parts, SuccessStyle.Render("clean"))
		} else {
			parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d missing, %d mismatched", r.Missing(), r.Mismatched())))
		}
	}

	parts = append(parts,
		LabelStyle.Render("Total:")+" "+SizeStyle.Render(types.FormatSize(r.TotalBytes)),
		LabelStyle.Render("Time:")+" "+ValueStyle.Render(formatDuration(r.Duration)),
		MutedStyle.Render("Use -o plain for unformatted output"),
	)

	return FooterBox.Render(strings.Join(parts, "  "))
}

// shortDigest abbreviates a digest for display.
func shortDigest(s string) string {
	if len(s) <= 12 {
		return s
	}
	return s[:12]
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
