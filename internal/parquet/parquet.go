// Package parquet provides data structures and functions for exporting
// verification run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"time"

	"github.com/corpusci/corpusci/schema"
	"github.com/parquet-go/parquet-go"
)

// Run represents a single verification run with metadata.
// This struct maps to the corpusci_runs database table.
type Run struct {
	// RunID is the unique identifier for this run
	RunID int64 `parquet:"run_id,snappy"`

	// StartTime is when the run began
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is when the run completed (nullable)
	EndTime *time.Time `parquet:"end_time,optional,snappy"`

	// TotalActions is the number of actions classified in this run
	TotalActions int32 `parquet:"total_actions,snappy"`

	// ConfigParams contains the JSON-encoded configuration parameters (nullable)
	ConfigParams *string `parquet:"config_params,optional,snappy"`
}

// ActionResult represents one classified action outcome within a run.
// This struct maps to the corpusci_action_results database table.
type ActionResult struct {
	// ID is the unique identifier for this record
	ID int64 `parquet:"id,snappy"`

	// RunID references the parent run
	RunID int64 `parquet:"run_id,snappy"`

	// RepoPath is the repository's checkout path in the index
	RepoPath string `parquet:"repo_path,snappy"`

	// Action is the action kind that was dispatched
	Action string `parquet:"action,snappy"`

	// Kind is the classification label (PASS, FAIL, XFAIL, UPASS)
	Kind string `parquet:"kind,snappy"`

	// Text is the full human-readable result line
	Text string `parquet:"text,snappy"`

	// CreatedAt is when the result was recorded
	CreatedAt time.Time `parquet:"created_at,snappy"`
}

// ConvertRunRecords maps stored run rows to their Parquet representation.
func ConvertRunRecords(records []schema.RunRecord) []Run {
	out := make([]Run, len(records))
	for i, r := range records {
		run := Run{
			RunID:        r.RunID,
			StartTime:    r.StartTime,
			EndTime:      r.EndTime,
			TotalActions: int32(r.TotalActions),
		}
		if r.ConfigParams != "" {
			params := r.ConfigParams
			run.ConfigParams = &params
		}
		out[i] = run
	}
	return out
}

// ConvertActionRecords maps stored action rows to their Parquet representation.
func ConvertActionRecords(records []schema.ActionRecord) []ActionResult {
	out := make([]ActionResult, len(records))
	for i, r := range records {
		out[i] = ActionResult{
			ID:        r.ID,
			RunID:     r.RunID,
			RepoPath:  r.RepoPath,
			Action:    r.Action,
			Kind:      r.Kind,
			Text:      r.Text,
			CreatedAt: r.CreatedAt,
		}
	}
	return out
}

// WriteRunsParquet writes a slice of Run structs to a Parquet file.
func WriteRunsParquet(data []Run, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteActionResultsParquet writes a slice of ActionResult structs to a Parquet file.
func WriteActionResultsParquet(data []ActionResult, outputPath string) error {
	return writeParquet(data, outputPath)
}

// writeParquet writes records to a Parquet file with the schema inferred
// from struct tags.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}
