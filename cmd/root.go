// =============================================================================
// Freight Billing Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every other command
// is attached to it.
//
// COBRA CLI STRUCTURE:
//   rootCmd (freightbill)
//   ├── ingest    one carrier file
//   ├── scan      every new file of the input folder
//   ├── delete    a (carrier, cycle) or (client, cycle)
//   ├── bill      mark a (client, cycle) billed
//   ├── list      shipments | aggregates | clients | cycles | carriers | uploads
//   ├── export    billing workbook
//   ├── backup    every table to one workbook
//   ├── invoice   one client's invoice as XML
//   ├── settings  show or change the saved settings
//   ├── reset     wipe all billing data
//   ├── validate  check synonyms, config and carrier profiles
//   └── version
//
// CONFIGURATION:
//   Layered lowest to highest: built-in defaults, config.yaml, FREIGHTBILL_*
//   environment variables, flags. A .env file in the working directory is
//   loaded into the environment first.
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ginjaninja78/freight-billing-reconciler/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file. Empty looks for
// config.yaml in the working directory and tolerates its absence.
var cfgFile string

// verbose forces debug logging.
var verbose bool

// v holds the layered configuration.
var v = viper.New()

// initErr is set by initConfig and reported by the first command to run.
var initErr error

// appConfig and logger are ready once PersistentPreRunE has run.
var (
	appConfig *config.MainConfig
	logger    = zap.NewNop()
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "freightbill",
	Short: "Freight Billing Reconciler - ingest carrier files and track client invoicing",
	Long: `freightbill ingests heterogeneous carrier billing exports (CSV and XLSX),
normalizes them to one shipment schema, and keeps per-client, per-carrier,
per-cycle billing totals so you know what is ready to invoice.

Key Features:
  - Automatic column mapping through a synonym table, with manual overrides
  - Duplicate detection by file content and by (carrier, cycle)
  - Replace semantics for corrected carrier files
  - Journaled commits to XLSX workbooks or PostgreSQL
  - Billing exports, backups and invoice XML

Example Usage:
  freightbill ingest fedex_2024-01.csv
  freightbill ingest export.xlsx --carrier FedEx --cycle 2024-01 --replace
  freightbill scan ./input
  freightbill bill --client Globex --cycle 2024-01 --invoice INV-1001
  freightbill export --cycle 2024-01`,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if initErr != nil {
			return initErr
		}

		cfg, err := config.FromViper(v)
		if err != nil {
			return err
		}
		appConfig = cfg

		l, err := newLogger(cfg.LogLevel, verbose)
		if err != nil {
			return err
		}
		logger = l
		if used := v.ConfigFileUsed(); used != "" {
			logger.Debug("configuration loaded", zap.String("file", used))
		}
		return nil
	},

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. It is called by main.main(). An interrupt cancels the
// running command; a file being ingested is then not committed.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to the main configuration file (default is ./config.yaml)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output for debugging")
	flags.String("data-dir", "", "Directory of the persisted tables and the commit journal")
	flags.String("backend", "", "Storage backend: xlsx, postgres or memory")
	flags.String("log-level", "", "Log level: debug, info, warn or error")

	config.SetDefaults(v)
	_ = v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = v.BindPFlag("storage.backend", flags.Lookup("backend"))
	_ = v.BindPFlag("log_level", flags.Lookup("log-level"))
}

// initConfig loads .env, then the config file and the environment into v.
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		initErr = fmt.Errorf("failed to load .env: %w", err)
		return
	}

	v.SetEnvPrefix("FREIGHTBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		initErr = fmt.Errorf("failed to read config file: %w", err)
	}
}

// newLogger builds the console logger used by every command.
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Development = false
	zc.DisableStacktrace = !verbose
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zc.Build()
}
