package calls

import (
	"time"

	"github.com/shopspring/decimal"
)

// Call is one completed voice-agent call attributed to a user.
// ExternalCallID is the provider's call identifier and the idempotency key
// for webhook replays.
type Call struct {
	ID             string `json:"id"`
	ExternalCallID string `json:"external_call_id"`

	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`
	AgentID   string `json:"agent_id"`

	FromNumber string `json:"from_number,omitempty"`
	ToNumber   string `json:"to_number,omitempty"`

	DurationSeconds int             `json:"duration_seconds"`
	Cost            decimal.Decimal `json:"cost"`

	Status CallStatus `json:"status"`

	// BillingStatus records whether the deduction went through. Unbilled
	// calls are kept for later reconciliation, never dropped.
	BillingStatus BillingStatus `json:"billing_status"`

	Sentiment     string `json:"sentiment,omitempty"`
	TranscriptURL string `json:"transcript_url,omitempty"`
	RecordingURL  string `json:"recording_url,omitempty"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
	CreatedAt time.Time `json:"created_at"`
}

type CallStatus string

const (
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusNoAnswer  CallStatus = "no_answer"
)

type BillingStatus string

const (
	BillingStatusBilled   BillingStatus = "billed"
	BillingStatusUnbilled BillingStatus = "unbilled"
)
