package cmd

import (
	"os"
	"time"

	"github.com/corpusci/corpusci/core"
	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/outwriter"
	"github.com/spf13/cobra"
)

// incrementalCmd replays commit sequences to verify incremental builds.
var incrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Replay commit sequences to verify incremental rebuilds.",
	Long: `Replay each repository's declared commit sequence: the first commit is
built from scratch and every later commit is rebuilt incrementally on top
of the surviving build state.

After each step the build products are archived so that incremental output
can be diffed against a from-scratch build of the same commit. Accumulated
compiler stats can be checked against per-commit ceilings to catch
incremental-build regressions that still produce correct output.

Examples:
  # Replay all declared sequences
  corpusci incremental --projects projects.json --swiftc swiftc

  # Fail when a commit recompiles more than its declared budget
  corpusci incremental --projects projects.json --swiftc swiftc --check-stats

  # Dump accumulated frontend counters
  corpusci incremental --projects projects.json --swiftc swiftc \
    --show-stats "NumSourceFiles.*"`,
	PreRunE: runSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		start := time.Now()
		list, repoCount, err := core.ExecuteIncrementalRun(rootCtx, cfg, historyStore)
		if err != nil {
			contract.LogFatal("Cannot execute incremental run", err)
		}
		if err := outwriter.WriteRunResults(list, repoCount, cfg, time.Since(start)); err != nil {
			contract.LogFatal("Cannot write run results", err)
		}
		if historyStore != nil {
			_ = historyStore.Close()
		}
		if !list.Kind().Acceptable() {
			os.Exit(1)
		}
	},
}
