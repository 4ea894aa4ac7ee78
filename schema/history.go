package schema

import "time"

// HistoryStatus summarizes the state of the run-history store.
type HistoryStatus struct {
	Backend      DatabaseBackend `json:"backend"`
	Connected    bool            `json:"connected"`
	TotalRuns    int64           `json:"total_runs"`
	TotalResults int64           `json:"total_results"`
	LastRun      *time.Time      `json:"last_run,omitempty"`
	OldestRun    *time.Time      `json:"oldest_run,omitempty"`
}

// RunRecord is one stored verification run.
type RunRecord struct {
	RunID        int64      `json:"run_id"`
	StartTime    time.Time  `json:"start_time"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	TotalActions int        `json:"total_actions"`
	ConfigParams string     `json:"config_params,omitempty"` // JSON-encoded configuration parameters
}

// ActionRecord is one stored per-action result belonging to a run.
type ActionRecord struct {
	ID        int64     `json:"id"`
	RunID     int64     `json:"run_id"`
	RepoPath  string    `json:"repo_path"`
	Action    string    `json:"action"`
	Kind      string    `json:"kind"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
