package team

import "time"

// Team is a billing unit with a seat allowance.
type Team struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Name      string `json:"name"`

	SeatLimit int `json:"seat_limit"`
	SeatsUsed int `json:"seats_used"`
}

// DeliveryStatus tracks the invite email through the outbox.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// Invitation is a pending membership offer. The token is single-use and the
// invite expires seven days after creation.
type Invitation struct {
	ID        string `json:"id"`
	TeamID    string `json:"team_id"`
	CompanyID string `json:"company_id"`

	Email string `json:"email"`
	Role  string `json:"role"`

	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`

	DeliveryStatus DeliveryStatus `json:"delivery_status"`

	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Expired reports whether the invitation is past its expiry at now.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
