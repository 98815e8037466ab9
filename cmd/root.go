// =============================================================================
// Ledger Normalizer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// (normalize, transpose, validate, version) is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (normalizer)
//   ├── normalizeCmd (normalizer normalize)
//   ├── transposeCmd (normalizer transpose)
//   ├── validateCmd  (normalizer validate)
//   └── versionCmd   (normalizer version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads .env from the working directory, if present
//   2. Loads config.yaml (built-in defaults when the default path is absent)
//   3. Loads the schema data (embedded unless schema_file is set)
//   4. Sets up logging
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/ledger-normalizer/internal/config"
	"github.com/ginjaninja78/ledger-normalizer/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// logFormat overrides the configured log format when set.
var logFormat string

// Loaded once per invocation by the root PersistentPreRunE.
var (
	appConfig *config.MainConfig
	appSchema *config.SchemaData
	appLogger *logging.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Ledger Normalizer - Merge car wash client spreadsheets into one canonical table",
	Long: `Ledger Normalizer reads the raw-data workbooks and CSV exports of every
client, maps each client's column names onto one canonical schema, and writes a
single normalized table.

Key Features:
  - Reference-table column mapping with per-client manual overrides
  - Wide P&L ledger transposition into per-date, per-location records
  - Sum checks proving totals survive normalization
  - CSV, XLSX and SQLite outputs

Example Usage:
  normalizer normalize                       # Normalize everything in the input directory
  normalizer normalize --config ./prod.yaml  # Use a custom configuration file
  normalizer transpose --file pl.xlsx --client "Great White Car Wash"
  normalizer validate                        # Check configuration without processing`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return bootstrap(cmd)
	},

	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return appLogger.Close()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)

	rootCmd.PersistentFlags().StringVar(
		&logFormat,
		"log-format",
		"",
		"Log format: text or json (overrides log_format)",
	)
}

// bootstrap loads the environment, configuration, schema data and logger.
func bootstrap(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := loadConfig(cfgFile, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	if logFormat != "" {
		cfg.LogFormat = logFormat
	}

	schemaData, err := config.LoadSchema(cfg.SchemaFile)
	if err != nil {
		return fmt.Errorf("failed to load schema data: %w", err)
	}

	logger, err := logging.New(cfg, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger.Logger)

	appConfig = cfg
	appSchema = schemaData
	appLogger = logger
	return nil
}

// loadConfig reads the config file. A missing file at the default path means
// built-in defaults; a missing file named with --config is an error.
func loadConfig(path string, explicit bool) (*config.MainConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) && !explicit {
		return config.Default()
	}

	cfg, err := config.LoadMainConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load main config: %w", err)
	}
	return cfg, nil
}
