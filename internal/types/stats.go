package types

import "time"

// WorkflowStats contains progress and health statistics of a workflow run
type WorkflowStats struct {
	Workflow  WorkflowType `json:"workflow"`
	Network   string       `json:"network"`
	IsRunning bool         `json:"is_running"`
	Attempts  uint64       `json:"attempts"`
	Succeeded uint64       `json:"succeeded"`
	Failed    uint64       `json:"failed"`
	LastError string       `json:"last_error,omitempty"`
	LastRunAt time.Time    `json:"last_run_at,omitempty"`
	NextRunAt time.Time    `json:"next_run_at,omitempty"`
	Uptime    string       `json:"uptime"`
}
