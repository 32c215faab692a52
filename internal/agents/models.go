package agents

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the agent lifecycle state.
type Status string

const (
	StatusActive      Status = "active"
	StatusInactive    Status = "inactive"
	StatusMaintenance Status = "maintenance"
)

// Assignable reports whether users may be assigned to an agent in this state.
func (s Status) Assignable() bool { return s == StatusActive }

// Agent is a voice agent mirrored from the provider. RetellAgentID is the
// provider's identifier and the reconciliation key; ID is ours.
type Agent struct {
	ID            string `json:"id"`
	RetellAgentID string `json:"retell_agent_id"`

	// CompanyID is assigned by operators, not reported by the provider;
	// sync preserves it across upserts.
	CompanyID string `json:"company_id,omitempty"`

	Name     string `json:"name"`
	VoiceID  string `json:"voice_id,omitempty"`
	Language string `json:"language,omitempty"`

	// RatePerMinute prices this agent's calls when the provider reports no
	// cost. Zero means the platform-wide assumed rate applies. Operator-set,
	// preserved across sync like CompanyID.
	RatePerMinute decimal.Decimal `json:"rate_per_minute"`

	// Status moves to inactive when the provider stops reporting the agent.
	// Rows are deactivated, never deleted, so historical calls keep their
	// reference. Maintenance is set by operators and survives sync.
	Status Status `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Assignment links a user to an agent. A user has at most one primary
// assignment; inbound call attribution resolves through it.
type Assignment struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	AgentID   string `json:"agent_id"`

	IsPrimary bool `json:"is_primary"`

	CreatedAt time.Time `json:"created_at"`
}

// UpsertResult reports whether an upsert inserted a new row or refreshed an
// existing one.
type UpsertResult struct {
	Agent   Agent
	Created bool
}
