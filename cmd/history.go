package cmd

import (
	"fmt"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/history"
	"github.com/corpusci/corpusci/internal/outwriter"
	"github.com/corpusci/corpusci/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// historySetup loads minimal configuration needed for history operations.
// This is used by commands that need history access without full shared setup.
func historySetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backendStr := viper.GetString("history-backend")
	connStr := viper.GetString("history-db-connect")

	// History commands default to the local SQLite store so that 'status'
	// works out of the box after a recorded run.
	backend := schema.DatabaseBackend(backendStr)
	if backendStr == "" || backend == schema.NoneBackend {
		backend = schema.SQLiteBackend
	}
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	store, err := history.NewStore(backend, connStr)
	if err != nil {
		return fmt.Errorf("failed to initialize history store: %w", err)
	}
	historyStore = store

	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	cfg.Output = schema.OutputMode(viper.GetString("output"))
	if cfg.Output == "" {
		cfg.Output = schema.TextOut
	}
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// historySetupWrapper wraps historySetup to provide PreRunE for history commands.
func historySetupWrapper(_ *cobra.Command, _ []string) error {
	return historySetup()
}

// historyMigrateSetup loads minimal configuration for migrations. It does
// NOT open the store or create tables, allowing migrations to run on a
// fresh database.
func historyMigrateSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backendStr := viper.GetString("history-backend")
	connStr := viper.GetString("history-db-connect")

	backend := schema.DatabaseBackend(backendStr)
	if backendStr == "" || backend == schema.NoneBackend {
		backend = schema.SQLiteBackend
	}
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	return nil
}

// historyCmd groups run-history management commands.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage stored verification run history",
	Long: `Manage the stored history of verification runs.

When a history backend is enabled, every run records:
- Run metadata (timestamps, configuration, action count)
- Every classified action result (PASS, FAIL, XFAIL, UPASS)

This enables longitudinal tracking of toolchain health across candidate
builds and data export for analytics tools.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None (disabled)

Subcommands:
  status  - Show history statistics
  clear   - Remove all stored runs
  export  - Export history to Parquet for analytics
  migrate - Run database schema migrations

Examples:
  # Check history status
  corpusci history status

  # Export for analysis in pandas/DuckDB
  corpusci history export --output-file history-data.parquet`,
}

// historyStatusCmd shows history status.
var historyStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display history statistics and connection details",
	PreRunE: historySetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := historyStore.GetStatus()
		if err != nil {
			contract.LogFatal("Failed to get history status", err)
		}
		if err := outwriter.WriteHistoryStatus(status, cfg); err != nil {
			contract.LogFatal("Failed to write history status", err)
		}
	},
}

// historyClearCmd clears the stored history.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all stored runs and action results",
	Long: `Delete all stored verification runs and per-action results.

WARNING: This action cannot be undone. Consider exporting data first.

Examples:
  # Export before clearing
  corpusci history export --output-file backup.parquet
  corpusci history clear`,
	PreRunE: historySetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := historyStore.Clear(); err != nil {
			contract.LogFatal("Failed to clear run history", err)
		}
		fmt.Println("Run history cleared successfully.")
	},
}

// historyExportCmd exports history data to Parquet files.
var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export run history to Parquet files",
	Long: `Export all stored runs and action results to Parquet files.

Two files are written: <output-file>.runs.parquet and
<output-file>.action_results.parquet. They can be loaded by Spark, Arrow,
Pandas (via pyarrow), DuckDB or any other Parquet-compatible tool.`,
	PreRunE: historySetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := history.ExecuteExport(historyStore, cfg.OutputFile); err != nil {
			contract.LogFatal("Failed to export run history", err)
		}
	},
}

// historyMigrateCmd runs database schema migrations.
var historyMigrateCmd = &cobra.Command{
	Use:     "migrate",
	Short:   "Run database schema migrations for the history backend",
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := history.Migrate(cfg.HistoryBackend, cfg.HistoryDBConnect, targetVersion); err != nil {
			contract.LogFatal("Failed to run migrations", err)
		}
	},
}
