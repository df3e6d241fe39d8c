package logging

import (
	"fmt"
	"io"
)

// OpenErrorLog opens the durable discrepancy log at path in append mode.
// Every line carries an RFC3339 timestamp and level prefix. The file is
// never rotated. When console is non-nil each line is mirrored to it.
func OpenErrorLog(path string, console io.Writer) (*Logger, error) {
	writer, err := OpenAppend(path)
	if err != nil {
		return nil, fmt.Errorf("opening error log: %w", err)
	}

	r := &root{
		writer:       writer,
		fileOut:      writer,
		consoleOut:   console,
		level:        LevelError,
		consoleLevel: LevelError,
		console:      console != nil,
		components:   map[string]Level{},
	}
	return r.logger(""), nil
}
