package cmd

import (
	"os"
	"time"

	"github.com/corpusci/corpusci/core"
	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/outwriter"
	"github.com/spf13/cobra"
)

// runCmd verifies repositories at their pinned known-good commits.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build and test every indexed project at its pinned commits.",
	Long: `Check out each selected repository at its newest known-good commit and
dispatch every declared build and test action with the candidate toolchain.

Every outcome is classified against the action's expected-failure table:
- PASS:  the action succeeded and no failure was expected
- FAIL:  the action failed with no matching expectation
- XFAIL: the action failed and a tracked bug expected it to
- UPASS: the action succeeded although a tracked bug expected failure

The process exits 0 only when every result is PASS or XFAIL.

Examples:
  # Verify the full index
  corpusci run --projects projects.json --swiftc /toolchain/bin/swiftc

  # Verify one repository at higher verbosity
  corpusci run --projects projects.json --swiftc swiftc \
    --include-repos "path == 'Alamofire'" --verbose

  # Write a machine-readable report
  corpusci run --projects projects.json --swiftc swiftc \
    --output json --output-file report.json`,
	PreRunE: runSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		start := time.Now()
		list, repoCount, err := core.ExecuteCompatRun(rootCtx, cfg, historyStore)
		if err != nil {
			contract.LogFatal("Cannot execute verification run", err)
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
