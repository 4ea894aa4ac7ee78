package history

import (
	"errors"
	"fmt"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/internal/parquet"
)

// ExecuteExport writes the full run history to a pair of Parquet files.
func ExecuteExport(store contract.HistoryStore, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run history found to export")
	}

	fmt.Printf("Exporting data from %s backend...\n", status.Backend)
	fmt.Printf("Total runs: %d\n", status.TotalRuns)
	fmt.Printf("Total action results: %d\n", status.TotalResults)

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	actionResults, err := store.GetAllActionResults()
	if err != nil {
		return fmt.Errorf("failed to retrieve action results: %w", err)
	}

	parquetRuns := parquet.ConvertRunRecords(runs)
	parquetResults := parquet.ConvertActionRecords(actionResults)

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunsParquet(parquetRuns, runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	fmt.Printf("Exported %d runs to: %s\n", len(parquetRuns), runsFile)

	resultsFile := outputFile + ".action_results.parquet"
	if err := parquet.WriteActionResultsParquet(parquetResults, resultsFile); err != nil {
		return fmt.Errorf("failed to write action results: %w", err)
	}
	fmt.Printf("Exported %d action results to: %s\n", len(parquetResults), resultsFile)

	return nil
}
