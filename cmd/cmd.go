// Package cmd defines the command-line interface for corpusci.
package cmd

import (
	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(incrementalCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the index subcommands to the parent index command
	indexCmd.AddCommand(indexListCmd)
	indexCmd.AddCommand(indexValidateCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("projects", "", "Path to the JSON project index")
	rootCmd.PersistentFlags().String("swiftc", "", "Path to the compiler executable under test")
	rootCmd.PersistentFlags().String("swift-version", "", "Language version passed to each build (empty = toolchain default)")
	rootCmd.PersistentFlags().String("swift-branch", "main", "Toolchain branch configuration label")
	rootCmd.PersistentFlags().StringSlice("include-repos", nil, "Predicates selecting repositories to verify (repeatable)")
	rootCmd.PersistentFlags().StringSlice("exclude-repos", nil, "Predicates excluding repositories from the run (repeatable)")
	rootCmd.PersistentFlags().StringSlice("include-actions", nil, "Predicates selecting actions to dispatch (repeatable)")
	rootCmd.PersistentFlags().StringSlice("exclude-actions", nil, "Predicates excluding actions from the run (repeatable)")
	rootCmd.PersistentFlags().String("sandbox-profile-xcodebuild", "", "Sandbox profile applied to xcodebuild invocations")
	rootCmd.PersistentFlags().String("sandbox-profile-package", "", "Sandbox profile applied to package-manager invocations")
	rootCmd.PersistentFlags().String("add-swift-flags", "", "Extra compiler flags for every invocation (shell-quoted string)")
	rootCmd.PersistentFlags().String("add-xcodebuild-flags", "", "Extra xcodebuild arguments (shell-quoted string)")
	rootCmd.PersistentFlags().Bool("skip-clean", false, "Skip clean steps and reuse existing build state")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of concurrent repository workers")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Stream build output to stdout instead of per-action log files")
	rootCmd.PersistentFlags().String("project-cache-path", "", "Root directory for repository checkouts (default ./project_cache)")
	rootCmd.PersistentFlags().Int("default-timeout", contract.DefaultTimeoutSeconds, "Per-invocation build/test timeout in seconds")
	rootCmd.PersistentFlags().String("history-backend", string(schema.NoneBackend), "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("history-db-connect", "", "Database connection string for mysql/postgresql history backends")
	rootCmd.PersistentFlags().String("output", string(schema.TextOut), "Output format: text or csv or json")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of incrementalCmd to Viper
	incrementalCmd.Flags().Bool("check-stats", false, "Compare accumulated compiler stats against per-commit expectations")
	incrementalCmd.Flags().String("show-stats", "", "Report accumulated compiler stats whose names match this pattern")
	incrementalCmd.Flags().Bool("enforce-determinism", false, "Treat full-vs-incremental build state divergence as FAIL")
	incrementalCmd.Flags().Int("settle-delay", contract.DefaultSettleSeconds, "Seconds to pause around each incremental dispatch")
	if err := viper.BindPFlags(incrementalCmd.Flags()); err != nil {
		contract.LogFatal("Error binding incremental flags", err)
	}

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}
