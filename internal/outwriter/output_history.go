package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/corpusci/corpusci/internal/contract"
	"github.com/corpusci/corpusci/schema"
)

// WriteHistoryStatus outputs backend connectivity and row counts,
// dispatching based on the output format configured.
func WriteHistoryStatus(status schema.HistoryStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeHistoryStatusCSV(w, status)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeHistoryStatusText(w, status)
		}, "Wrote status")
	}
}

func writeHistoryStatusText(w io.Writer, status schema.HistoryStatus) error {
	formatTime := func(t *time.Time) string {
		if t == nil {
			return "never"
		}
		return t.Format(time.RFC3339)
	}
	lines := []struct {
		label string
		value string
	}{
		{"Backend", string(status.Backend)},
		{"Connected", fmt.Sprintf("%t", status.Connected)},
		{"Total runs", fmt.Sprintf("%d", status.TotalRuns)},
		{"Total results", fmt.Sprintf("%d", status.TotalResults)},
		{"Last run", formatTime(status.LastRun)},
		{"Oldest run", formatTime(status.OldestRun)},
	}
	for _, line := range lines {
		if _, err := fmt.Fprintf(w, "%-14s %s\n", line.label+":", line.value); err != nil {
			return err
		}
	}
	return nil
}

func writeHistoryStatusCSV(w io.Writer, status schema.HistoryStatus) error {
	header := []string{"backend", "connected", "total_runs", "total_results", "last_run", "oldest_run"}
	formatTime := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format(time.RFC3339)
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		return cw.Write([]string{
			string(status.Backend),
			fmt.Sprintf("%t", status.Connected),
			fmt.Sprintf("%d", status.TotalRuns),
			fmt.Sprintf("%d", status.TotalResults),
			formatTime(status.LastRun),
			formatTime(status.OldestRun),
		})
	})
}
