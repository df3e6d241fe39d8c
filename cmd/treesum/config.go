package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/jamesainslie/treesum/pkg/treesum/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage treesum configuration settings.

Configuration is loaded from:
  1. --config <file> (if given)
  2. $XDG_CONFIG_HOME/treesum/config.yaml (if set)
  3. ~/.config/treesum/config.yaml

Environment variables override config file settings using the TREESUM_ prefix:
  TREESUM_WORKERS=8
  TREESUM_ERROR_LOG=/var/log/treesum-errors.log
  TREESUM_HISTORY_ENABLED=false

Command-line flags override both.`,
	PersistentPreRunE: skipBootstrap,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration from all sources.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit configuration file",
	Long: `Open the configuration file in your default editor.

The editor is determined by:
  1. $VISUAL environment variable
  2. $EDITOR environment variable
  3. Falls back to 'vi'

If the config file doesn't exist, a default one will be created first.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create default configuration file",
	Long:  `Create a default configuration file if one doesn't exist.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show configuration file path",
	Long:  `Display the path to the configuration file.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}

// runConfigShow displays the effective configuration.
func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if configFile := viper.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(stdout, "Config file: %s\n\n", configFile)
	} else {
		fmt.Fprintln(stdout, "Config file: (using defaults, no file found)")
		fmt.Fprintln(stdout)
	}

	fmt.Fprintln(stdout, "Current Configuration:")
	fmt.Fprintln(stdout, "----------------------")
	fmt.Fprintf(stdout, "workers:                %d\n", cfg.Workers)
	fmt.Fprintf(stdout, "chunk_size:             %s\n", cfg.ChunkSize)
	fmt.Fprintf(stdout, "error_log:              %s\n", cfg.ErrorLog)
	fmt.Fprintf(stdout, "output:                 %s\n", cfg.Output)
	fmt.Fprintf(stdout, "history.enabled:        %t\n", cfg.History.Enabled)
	fmt.Fprintf(stdout, "history.path:           %s\n", cfg.History.Path)
	fmt.Fprintf(stdout, "history.retention_days: %d\n", cfg.History.RetentionDays)
	fmt.Fprintf(stdout, "logging.level:          %s\n", cfg.Logging.Level)
	logPath := cfg.Logging.Path
	if logPath == "" {
		logPath = config.DefaultLogPath()
	}
	fmt.Fprintf(stdout, "logging.path:           %s\n", logPath)

	fmt.Fprintln(stdout, "\nEnvironment Overrides:")
	fmt.Fprintln(stdout, "----------------------")
	envVars := []string{
		"TREESUM_WORKERS",
		"TREESUM_CHUNK_SIZE",
		"TREESUM_ERROR_LOG",
		"TREESUM_OUTPUT",
		"TREESUM_HISTORY_ENABLED",
		"TREESUM_HISTORY_PATH",
		"TREESUM_HISTORY_RETENTION_DAYS",
		"TREESUM_LOGGING_LEVEL",
		"TREESUM_LOGGING_PATH",
	}

	anyOverrides := false
	for _, name := range envVars {
		if val := os.Getenv(name); val != "" {
			fmt.Fprintf(stdout, "%s=%s\n", name, val)
			anyOverrides = true
		}
	}
	if !anyOverrides {
		fmt.Fprintln(stdout, "(none)")
	}

	return nil
}

// runConfigEdit opens the config file in an editor.
func runConfigEdit(_ *cobra.Command, _ []string) error {
	configPath, err := config.WriteDefault()
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	printVerbose("Opening %s with %s", configPath, editor)

	editorCmd := exec.Command(editor, configPath)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor command failed: %w", err)
	}

	return nil
}

// runConfigInit creates a default config file.
func runConfigInit(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		printInfo("Config file already exists: %s", configPath)
		printInfo("Use 'treesum config edit' to modify it.")
		return nil
	}

	if _, err := config.WriteDefault(); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	printInfo("Created default config file: %s", configPath)
	return nil
}

// runConfigPath shows the config file path.
func runConfigPath(_ *cobra.Command, _ []string) error {
	configPath, err := config.ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	fmt.Fprintln(stdout, configPath)

	if _, err := os.Stat(configPath); err == nil {
		printVerbose("File exists")
	} else if os.IsNotExist(err) {
		printVerbose("File does not exist (will use defaults)")
	}

	return nil
}
