// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"runtime"
	"time"

	"github.com/corpusci/corpusci/schema"
)

// HistoryStore records verification runs and their per-action results.
// This allows the persistence layer to be swapped or mocked for testing.
type HistoryStore interface {
	// BeginRun creates a new run row and returns its unique ID.
	BeginRun(startTime time.Time, configParams map[string]any) (int64, error)

	// EndRun updates the run with completion data.
	EndRun(runID int64, endTime time.Time, totalActions int) error

	// RecordActionResult stores one classified action outcome.
	RecordActionResult(runID int64, repoPath string, action string, result schema.Result) error

	// GetAllRuns returns every stored run, oldest first.
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllActionResults returns every stored action result, oldest first.
	GetAllActionResults() ([]schema.ActionRecord, error)

	// GetStatus reports backend connectivity and row counts.
	GetStatus() (schema.HistoryStatus, error)

	// Clear removes all stored runs and results.
	Clear() error

	Close() error
}

// CurrentPlatform returns the host platform name as used by the project
// index (`platforms` allow-lists, xfail platform keys).
func CurrentPlatform() string {
	switch runtime.GOOS {
	case "darwin":
		return "Darwin"
	case "linux":
		return "Linux"
	case "windows":
		return "Windows"
	default:
		return runtime.GOOS
	}
}
