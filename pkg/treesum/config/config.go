package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"
	"github.com/jamesainslie/treesum/pkg/treesum/hasher"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/spf13/viper"
)

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSize    string `mapstructure:"max_size"`
	MaxAge     int    `mapstructure:"max_age"`
	MaxBackups int    `mapstructure:"max_backups"`
	Daily      bool   `mapstructure:"daily"`
}

// LoggingConfig configures application logging.
type LoggingConfig struct {
	Level        string            `mapstructure:"level"`
	Path         string            `mapstructure:"path"`
	ConsoleLevel string            `mapstructure:"console_level"`
	Rotation     RotationConfig    `mapstructure:"rotation"`
	Components   map[string]string `mapstructure:"components"`
}

// HistoryConfig configures the run history store.
type HistoryConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// Config represents the application configuration.
type Config struct {
	Workers   int           `mapstructure:"workers"`
	ChunkSize string        `mapstructure:"chunk_size"`
	ErrorLog  string        `mapstructure:"error_log"`
	Output    string        `mapstructure:"output"`
	Quiet     bool          `mapstructure:"quiet"`
	Verbose   bool          `mapstructure:"verbose"`
	Logging   LoggingConfig `mapstructure:"logging"`
	History   HistoryConfig `mapstructure:"history"`
}

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// Setup prepares v to read treesum configuration: the config file (cfgFile
// when set, otherwise config.yaml in the XDG or ~/.config directory), the
// TREESUM_ environment prefix, and defaults. A missing config file is not
// an error.
func Setup(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
			v.AddConfigPath(filepath.Join(xdgConfigHome, "treesum"))
		}
		if homeDir, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "treesum"))
		}
	}

	v.SetEnvPrefix("TREESUM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("chunk_size", DefaultChunkSize)
	v.SetDefault("error_log", DefaultErrorLog)
	v.SetDefault("output", DefaultOutput)
	v.SetDefault("quiet", false)
	v.SetDefault("verbose", false)

	v.SetDefault("history.enabled", true)
	v.SetDefault("history.path", "") // Empty means DefaultHistoryPath
	v.SetDefault("history.retention_days", DefaultRetentionDays)

	v.SetDefault("logging.level", DefaultLogLevel)
	v.SetDefault("logging.path", "") // Empty means use DefaultLogPath
	v.SetDefault("logging.console_level", "")
	v.SetDefault("logging.rotation.max_size", DefaultLogMaxSize)
	v.SetDefault("logging.rotation.max_age", 30)
	v.SetDefault("logging.rotation.max_backups", 5)
	v.SetDefault("logging.rotation.daily", true)
	v.SetDefault("logging.components", DefaultComponentLevels)
}

// Decode unmarshals v into a Config, expands ~ in paths, and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	for _, p := range []*string{&cfg.ErrorLog, &cfg.Logging.Path, &cfg.History.Path} {
		expanded, err := ExpandPath(*p)
		if err != nil {
			return nil, err
		}
		*p = expanded
	}
	if cfg.History.Path == "" {
		cfg.History.Path = DefaultHistoryPath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load loads configuration from cfgFile (or the default locations when
// empty) and environment variables.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	if err := Setup(v, cfgFile); err != nil {
		return nil, err
	}
	return Decode(v)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if err := types.ValidateWorkers(c.Workers); err != nil {
		return fmt.Errorf("%w: workers: %w", ErrInvalidConfig, err)
	}
	size, err := c.ChunkBytes()
	if err != nil {
		return fmt.Errorf("%w: chunk_size: %w", ErrInvalidConfig, err)
	}
	if size < 1 {
		return fmt.Errorf("%w: chunk_size must be at least one byte", ErrInvalidConfig)
	}
	if err := hasher.ValidateChunkSize(size); err != nil {
		return fmt.Errorf("%w: chunk_size: %w", ErrInvalidConfig, err)
	}
	if !slices.Contains(OutputFormats, c.Output) {
		return fmt.Errorf("%w: output %q (want one of %s)", ErrInvalidConfig, c.Output, strings.Join(OutputFormats, ", "))
	}
	if c.ErrorLog == "" {
		return fmt.Errorf("%w: error_log must not be empty", ErrInvalidConfig)
	}
	return nil
}

// ChunkBytes returns ChunkSize in bytes.
func (c *Config) ChunkBytes() (int64, error) {
	return types.ParseSize(c.ChunkSize)
}

// ConfigDir returns the configuration directory path.
func ConfigDir() (string, error) {
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return filepath.Join(xdgConfigHome, "treesum"), nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", "treesum"), nil
}

// ConfigPath returns the path of the default config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// WriteDefault writes a default config file if none exists and returns its
// path. An existing file is left untouched.
func WriteDefault() (string, error) {
	configPath, err := ConfigPath()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check config file: %w", err)
	}

	defaultConfig := fmt.Sprintf(`# treesum configuration

# Number of files hashed concurrently
workers: %d

# Read size used while hashing (e.g. 8KiB, 1MiB)
chunk_size: %s

# Discrepancy log written by 'treesum import' (appended to)
error_log: %s

# Summary format: pretty, plain, json, yaml
output: %s

# Run history
history:
  enabled: true
  # Empty means use default: $XDG_DATA_HOME/treesum/history
  path: ""
  retention_days: %d

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: %s
  # Log file path (empty means use default: $XDG_STATE_HOME/treesum/treesum.log)
  path: ""
  # Mirror log lines at or above this level to stderr (empty disables)
  console_level: ""
  rotation:
    max_size: %s
    max_age: 30       # days
    max_backups: 5
    daily: true
  # Per-component log levels
  components:
    exporter: info
    validator: info
    history: warn
`, DefaultWorkers, DefaultChunkSize, DefaultErrorLog, DefaultOutput, DefaultRetentionDays, DefaultLogLevel, DefaultLogMaxSize)

	if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
		return "", fmt.Errorf("failed to write default config: %w", err)
	}

	return configPath, nil
}

// ExpandPath expands ~ in a path to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, path[1:]), nil
}

// DataDir returns $XDG_DATA_HOME/treesum/ for the history database.
func DataDir() string {
	return filepath.Join(xdg.DataHome, "treesum")
}

// StateDir returns $XDG_STATE_HOME/treesum/ for log files.
func StateDir() string {
	return filepath.Join(xdg.StateHome, "treesum")
}

// DefaultHistoryPath returns the default history database directory.
func DefaultHistoryPath() string {
	return filepath.Join(DataDir(), "history")
}

// DefaultLogPath returns the default application log path.
func DefaultLogPath() string {
	return filepath.Join(StateDir(), "treesum.log")
}

// EnsureDirs creates the config, data, and state directories.
func EnsureDirs() error {
	configDir, err := ConfigDir()
	if err != nil {
		return err
	}
	for _, dir := range []string{configDir, DataDir(), StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	return nil
}
