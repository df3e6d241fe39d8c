package output

import (
	"bytes"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/jamesainslie/treesum/pkg/treesum/validator"
)

// document is the machine-readable form shared by the JSON and YAML
// formatters.
type document struct {
	Mode          Mode                `json:"mode" yaml:"mode"`
	Root          string              `json:"root" yaml:"root"`
	Manifest      string              `json:"manifest" yaml:"manifest"`
	ErrorLog      string              `json:"error_log,omitempty" yaml:"error_log,omitempty"`
	RunID         string              `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Stats         stats               `json:"stats" yaml:"stats"`
	Failures      []types.FileFailure `json:"failures,omitempty" yaml:"failures,omitempty"`
	Discrepancies []discrepancy       `json:"discrepancies,omitempty" yaml:"discrepancies,omitempty"`
}

type stats struct {
	Discovered int    `json:"discovered,omitempty" yaml:"discovered,omitempty"`
	Hashed     int    `json:"hashed,omitempty" yaml:"hashed,omitempty"`
	Checked    int    `json:"checked,omitempty" yaml:"checked,omitempty"`
	Missing    int    `json:"missing" yaml:"missing"`
	Mismatched int    `json:"mismatched" yaml:"mismatched"`
	TotalBytes int64  `json:"total_bytes" yaml:"total_bytes"`
	TotalHuman string `json:"total_human" yaml:"total_human"`
	Duration   string `json:"duration" yaml:"duration"`
}

type discrepancy struct {
	Kind     string `json:"kind" yaml:"kind"`
	Path     string `json:"path" yaml:"path"`
	Expected string `json:"expected,omitempty" yaml:"expected,omitempty"`
	Actual   string `json:"actual,omitempty" yaml:"actual,omitempty"`
	Cause    string `json:"cause,omitempty" yaml:"cause,omitempty"`
}

// buildDocument converts a Result into its machine-readable form.
func buildDocument(r *Result) (document, error) {
	if r.Mode != ModeExport && r.Mode != ModeImport {
		return document{}, fmt.Errorf("unknown result mode: %q", r.Mode)
	}

	doc := document{
		Mode:     r.Mode,
		Root:     r.Root,
		Manifest: r.ManifestPath,
		ErrorLog: r.ErrorLog,
		RunID:    r.RunID,
		Failures: r.Failures,
		Stats: stats{
			Discovered: r.Discovered,
			Hashed:     r.Hashed,
			Checked:    r.Checked,
			Missing:    r.Missing(),
			Mismatched: r.Mismatched(),
			TotalBytes: r.TotalBytes,
			TotalHuman: types.FormatSize(r.TotalBytes),
			Duration:   r.Duration.String(),
		},
	}

	for _, d := range r.Discrepancies {
		out := discrepancy{Kind: d.Kind.String(), Path: d.Path, Cause: d.Cause}
		if d.Kind == validator.KindMismatch {
			out.Expected = d.Expected
			out.Actual = d.Actual
		}
		doc.Discrepancies = append(doc.Discrepancies, out)
	}
	return doc, nil
}

// JSONFormatter formats output as a single indented JSON object.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, r *Result) error {
	doc, err := buildDocument(r)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

func init() {
	Register("json", func() Formatter {
		return &JSONFormatter{}
	})
}

// Ensure JSONFormatter implements Formatter.
var _ Formatter = (*JSONFormatter)(nil)
