package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/history"
	"github.com/corpusci/corpusci/internal/mcp"
	"github.com/corpusci/corpusci/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the corpusci MCP server",
	Long:  `Launch an MCP server that allows AI agents to inspect the project index, evaluate selection predicates and query run history via standard tools.`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		// Minimal setup only. Stdio carries the protocol, so nothing may
		// log to stdout, and a project index is optional at startup since
		// tools can name one per call.
		if err := loadConfigFile(); err != nil {
			return err
		}
		if projects := viper.GetString("projects"); projects != "" {
			abs, err := filepath.Abs(projects)
			if err != nil {
				return fmt.Errorf("failed to resolve project index path: %w", err)
			}
			cfg.ProjectsPath = abs
		}

		backend := schema.DatabaseBackend(viper.GetString("history-backend"))
		connStr := viper.GetString("history-db-connect")
		if backend == "" {
			backend = schema.NoneBackend
		}
		if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
			return err
		}
		store, err := history.NewStore(backend, connStr)
		if err != nil {
			return fmt.Errorf("failed to initialize history store: %w", err)
		}
		historyStore = store
		return nil
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, historyStore)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
