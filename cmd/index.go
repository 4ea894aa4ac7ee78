package cmd

import (
	"fmt"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/outwriter"
	"github.com/corpusci/corpusci/schema"
	"github.com/spf13/cobra"
)

// indexCmd groups project-index inspection commands.
var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and validate the project index",
	Long: `Inspect the JSON project index that drives verification runs.

The index declares every tracked repository: where to clone it from, which
commits are pinned as known-good, which incremental commit sequences to
replay and which build/test actions to dispatch.

Subcommands:
  list     - Show the indexed repositories
  validate - Check the index for structural errors

Examples:
  # List all indexed repositories
  corpusci index list --projects projects.json

  # Validate before committing index changes
  corpusci index validate --projects projects.json`,
}

// indexListCmd shows the indexed repositories.
var indexListCmd = &cobra.Command{
	Use:     "list",
	Short:   "Show the repositories declared in the project index",
	PreRunE: indexSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		repos, err := schema.LoadIndex(cfg.ProjectsPath)
		if err != nil {
			contract.LogFatal("Cannot load project index", err)
		}
		if err := outwriter.WriteIndexList(repos, cfg); err != nil {
			contract.LogFatal("Cannot write project listing", err)
		}
	},
}

// indexValidateCmd checks the index for structural errors.
var indexValidateCmd = &cobra.Command{
	Use:     "validate",
	Short:   "Check the project index for structural errors",
	PreRunE: indexSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		repos, err := schema.LoadIndex(cfg.ProjectsPath)
		if err != nil {
			contract.LogFatal("Project index is invalid", err)
		}
		actionCount := 0
		for _, r := range repos {
			actionCount += len(r.Actions)
		}
		fmt.Printf("Project index is valid: %d repositories, %d actions\n", len(repos), actionCount)
	},
}
