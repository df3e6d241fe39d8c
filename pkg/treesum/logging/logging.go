// Package logging provides component loggers for treesum built on
// charmbracelet/log, a rotating application log file, and the durable
// discrepancy log written during validation.
//
// Loggers are plain values passed to the code that uses them; there is no
// process-wide logger. Basic usage:
//
//	logger, err := logging.New(logging.Config{
//	    Level:        "info",
//	    Path:         logging.DefaultLogPath(),
//	    ConsoleLevel: "error",
//	})
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	exportLog := logger.Component("exporter")
//	exportLog.Info("export started", "root", "/data")
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/charmbracelet/log"
)

// Level represents a logging level.
type Level int

// Log levels from least to most severe.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// toCharmLevel converts our Level to charmbracelet/log level.
func (l Level) toCharmLevel() log.Level {
	switch l {
	case LevelDebug:
		return log.DebugLevel
	case LevelInfo:
		return log.InfoLevel
	case LevelWarn:
		return log.WarnLevel
	case LevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

// ErrInvalidLevel is returned when an invalid log level string is provided.
var ErrInvalidLevel = errors.New("invalid log level")

// ParseLevel parses a string into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %s", ErrInvalidLevel, s)
	}
}

// Config configures a Logger.
type Config struct {
	// Level is the default log level (debug, info, warn, error).
	Level string

	// Path is the log file path. Empty uses DefaultLogPath().
	Path string

	// Rotation configures log file rotation.
	Rotation RotationConfig

	// Components maps component names to their log levels.
	Components map[string]string

	// ConsoleLevel enables console output at the specified level.
	// Empty string disables console output.
	ConsoleLevel string

	// Console is where console output goes. Nil means os.Stderr.
	Console io.Writer
}

// Logger wraps charmbracelet/log with component identification.
// It writes to a file and optionally mirrors to the console with a
// shorter timestamp.
type Logger struct {
	file      *log.Logger
	console   *log.Logger
	component string

	// shared by every logger derived from the same New call
	root *root
}

// root holds what derived loggers need to build component children.
type root struct {
	writer       io.WriteCloser
	fileOut      io.Writer
	consoleOut   io.Writer
	level        Level
	consoleLevel Level
	console      bool
	components   map[string]Level
}

// New creates a Logger writing to the configured file.
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	components := make(map[string]Level, len(cfg.Components))
	for comp, lvl := range cfg.Components {
		parsed, err := ParseLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("parsing level for component %s: %w", comp, err)
		}
		components[comp] = parsed
	}

	r := &root{
		level:      level,
		components: components,
		consoleOut: cfg.Console,
	}
	if r.consoleOut == nil {
		r.consoleOut = os.Stderr
	}

	if cfg.ConsoleLevel != "" {
		consoleLevel, err := ParseLevel(cfg.ConsoleLevel)
		if err != nil {
			return nil, fmt.Errorf("parsing console level: %w", err)
		}
		r.consoleLevel = consoleLevel
		r.console = true
	}

	path := cfg.Path
	if path == "" {
		path = DefaultLogPath()
	}

	writer, err := NewRotatingWriter(path, cfg.Rotation)
	if err != nil {
		return nil, fmt.Errorf("creating log writer: %w", err)
	}
	r.writer = writer
	r.fileOut = writer

	return r.logger(""), nil
}

// NewWithWriter creates a Logger writing only to w, without rotation or
// console output. It is intended for tests and embedding.
func NewWithWriter(w io.Writer, level Level) *Logger {
	r := &root{
		fileOut:    w,
		level:      level,
		components: map[string]Level{},
	}
	return r.logger("")
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWithWriter(io.Discard, LevelError)
}

// logger builds a logger for the given component.
func (r *root) logger(component string) *Logger {
	level := r.level
	if compLevel, ok := r.components[component]; ok {
		level = compLevel
	}

	fileLogger := log.NewWithOptions(r.fileOut, log.Options{
		Level:           level.toCharmLevel(),
		ReportCaller:    false,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          component,
	})

	l := &Logger{
		file:      fileLogger,
		component: component,
		root:      r,
	}

	if r.console {
		l.console = log.NewWithOptions(r.consoleOut, log.Options{
			Level:           r.consoleLevel.toCharmLevel(),
			ReportCaller:    false,
			ReportTimestamp: true,
			TimeFormat:      "15:04:05",
			Prefix:          component,
		})
	}

	return l
}

// Component returns a logger for the named component sharing this
// logger's outputs. Per-component level overrides apply.
func (l *Logger) Component(name string) *Logger {
	return l.root.logger(name)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, args ...interface{}) {
	l.log(LevelDebug, msg, args...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, args ...interface{}) {
	l.log(LevelInfo, msg, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, args ...interface{}) {
	l.log(LevelWarn, msg, args...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, args ...interface{}) {
	l.log(LevelError, msg, args...)
}

// log writes to the file logger and, if configured, the console logger.
func (l *Logger) log(level Level, msg string, args ...interface{}) {
	logTo(l.file, level, msg, args...)

	if l.console != nil {
		logTo(l.console, level, msg, args...)
	}
}

// logTo writes a log message to the given logger at the specified level.
func logTo(logger *log.Logger, level Level, msg string, args ...interface{}) {
	switch level {
	case LevelDebug:
		logger.Debug(msg, args...)
	case LevelInfo:
		logger.Info(msg, args...)
	case LevelWarn:
		logger.Warn(msg, args...)
	case LevelError:
		logger.Error(msg, args...)
	}
}

// With returns a new logger with additional context.
func (l *Logger) With(args ...interface{}) *Logger {
	newLogger := &Logger{
		file:      l.file.With(args...),
		component: l.component,
		root:      l.root,
	}
	if l.console != nil {
		newLogger.console = l.console.With(args...)
	}
	return newLogger
}

// Close flushes and closes the underlying log file, if any. Loggers
// derived from the same New call must not be used afterwards.
func (l *Logger) Close() error {
	if l.root.writer == nil {
		return nil
	}
	if err := l.root.writer.Close(); err != nil {
		return fmt.Errorf("closing log writer: %w", err)
	}
	return nil
}

// DefaultLogPath returns the default log file path.
// It uses $XDG_STATE_HOME/treesum/treesum.log.
func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, "treesum", "treesum.log")
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Level:    "info",
		Path:     DefaultLogPath(),
		Rotation: DefaultRotationConfig(),
	}
}
