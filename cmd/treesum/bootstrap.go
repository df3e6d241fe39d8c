package main

import (
	"fmt"

	"github.com/jamesainslie/treesum/pkg/treesum/config"
	"github.com/jamesainslie/treesum/pkg/treesum/logging"
	"github.com/jamesainslie/treesum/pkg/treesum/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// loadConfig reads the config file, environment, and bound flags.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	if err := config.Setup(v, cfgFile); err != nil {
		return nil, err
	}
	return config.Decode(v)
}

// initializeLogging is the PersistentPreRunE hook. It creates the XDG
// directories, loads configuration, and opens the application log.
func initializeLogging(_ *cobra.Command, _ []string) error {
	if err := config.EnsureDirs(); err != nil {
		return fmt.Errorf("preparing directories: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logPath := cfg.Logging.Path
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}

	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Path:         logPath,
		Rotation:     parseRotationConfig(cfg.Logging.Rotation),
		Components:   cfg.Logging.Components,
		ConsoleLevel: cfg.Logging.ConsoleLevel,
		Console:      stderr,
	}
	if cfg.Verbose {
		logCfg.Level = "debug"
		logCfg.ConsoleLevel = "debug"
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}

	app = &appState{cfg: cfg, logger: logger}
	logger.Debug("configuration loaded",
		"config", viper.ConfigFileUsed(),
		"workers", cfg.Workers,
		"chunk_size", cfg.ChunkSize,
	)
	return nil
}

// closeLogging closes the application log opened by initializeLogging.
func closeLogging() error {
	if app == nil || app.logger == nil {
		return nil
	}
	return app.logger.Close()
}

// parseRotationConfig converts the config file's rotation settings, falling
// back to the default size when max_size is empty or invalid.
func parseRotationConfig(cfg config.RotationConfig) logging.RotationConfig {
	maxSize := logging.DefaultRotationConfig().MaxSize
	if cfg.MaxSize != "" {
		if parsed, err := types.ParseSize(cfg.MaxSize); err == nil && parsed > 0 {
			maxSize = parsed
		}
	}

	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     cfg.MaxAge,
		MaxBackups: cfg.MaxBackups,
		Daily:      cfg.Daily,
	}
}
