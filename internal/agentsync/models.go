package agentsync

import "time"

// RunStatus is the lifecycle of one reconciliation pass. running is the only
// non-terminal state.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Trigger records what started a run.
type Trigger string

const (
	TriggerManual    Trigger = "manual"
	TriggerScheduled Trigger = "scheduled"
)

// SyncRun is one reconciliation of the local agent mirror against the
// provider. Counts are zero until the run reaches a terminal state.
type SyncRun struct {
	ID      string    `json:"id"`
	Status  RunStatus `json:"status"`
	Trigger Trigger   `json:"trigger"`

	AgentsCreated     int `json:"agents_created"`
	AgentsUpdated     int `json:"agents_updated"`
	AgentsDeactivated int `json:"agents_deactivated"`

	// Error holds the failure reason for failed runs, empty otherwise.
	Error string `json:"error,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
