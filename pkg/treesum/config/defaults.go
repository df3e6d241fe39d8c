// Package config provides configuration management for treesum.
package config

// Default configuration values for treesum.
const (
	// DefaultWorkers is the number of files hashed concurrently.
	DefaultWorkers = 4

	// DefaultChunkSize is the read size used while hashing.
	DefaultChunkSize = "8KiB"

	// DefaultErrorLog is the discrepancy log written by import.
	DefaultErrorLog = "error.log"

	// DefaultOutput is the summary output format.
	DefaultOutput = "pretty"

	// DefaultConfigDir is the default configuration directory path.
	DefaultConfigDir = "~/.config/treesum"

	// DefaultRetentionDays is the default number of days to retain run history.
	DefaultRetentionDays = 30

	// DefaultLogLevel is the level of the application log file.
	DefaultLogLevel = "info"

	// DefaultLogMaxSize is the application log size that triggers rotation.
	DefaultLogMaxSize = "10MB"
)

// DefaultComponentLevels are the per-component application log levels.
var DefaultComponentLevels = map[string]string{
	"exporter":  "info",
	"validator": "info",
	"history":   "warn",
}

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"pretty", "plain", "json", "yaml"}
