// Package history records export and import runs in a Badger database so
// that past results can be listed and inspected.
package history

import (
	"time"

	json "github.com/goccy/go-json"
)

// Operation is the kind of run recorded.
type Operation string

const (
	// OpExport records a manifest export.
	OpExport Operation = "export"
	// OpImport records a validation against a manifest.
	OpImport Operation = "import"
)

// MaxIssues bounds how many issue lines a record keeps.
const MaxIssues = 200

// Record describes one completed run.
type Record struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Operation Operation     `json:"operation"`
	Root      string        `json:"root"`
	Manifest  string        `json:"manifest"`
	ErrorLog  string        `json:"error_log,omitempty"`
	Files     int           `json:"files"`
	Failures  int           `json:"failures"`
	Missing   int           `json:"missing"`
	Mismatch  int           `json:"mismatch"`
	Bytes     int64         `json:"total_bytes"`
	Elapsed   time.Duration `json:"elapsed"`

	// Issues holds the first MaxIssues failure or discrepancy lines.
	Issues []string `json:"issues,omitempty"`

	// Truncated counts issue lines dropped beyond MaxIssues.
	Truncated int `json:"truncated,omitempty"`
}

// Discrepancies returns the total number of discrepancies in an import run.
func (r *Record) Discrepancies() int {
	return r.Missing + r.Mismatch
}

// AddIssue appends an issue line, counting it as truncated past MaxIssues.
func (r *Record) AddIssue(line string) {
	if len(r.Issues) >= MaxIssues {
		r.Truncated++
		return
	}
	r.Issues = append(r.Issues, line)
}

// Encode serializes the record to bytes.
func (r *Record) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// Decode deserializes bytes into the record.
func (r *Record) Decode(data []byte) error {
	return json.Unmarshal(data, r)
}
