package reporting

import (
	"time"

	"github.com/shopspring/decimal"
)

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummaryRequest requests aggregated call metrics.
// Tenancy isolation: CompanyID is required.

type CallsSummaryRequest struct {
	CompanyID string    `json:"company_id"`
	Range     TimeRange `json:"range"`
	UserID    string    `json:"user_id,omitempty"`
}

type CallsSummary struct {
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id,omitempty"`

	TotalCalls     int `json:"total_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	NoAnswerCalls  int `json:"no_answer_calls"`

	BilledCalls   int `json:"billed_calls"`
	UnbilledCalls int `json:"unbilled_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	TotalCost decimal.Decimal `json:"total_cost"`

	// SentimentBreakdown counts calls per analyzed sentiment label.
	SentimentBreakdown map[string]int `json:"sentiment_breakdown"`

	RecordedCalls int `json:"recorded_calls"`
}

// SpendSummaryRequest requests aggregated spend metrics derived from the
// immutable credit transaction log.

type SpendSummaryRequest struct {
	CompanyID string    `json:"company_id"`
	Range     TimeRange `json:"range"`
	UserID    string    `json:"user_id,omitempty"`
}

type SpendSummary struct {
	CompanyID string `json:"company_id"`
	UserID    string `json:"user_id,omitempty"`

	TotalDeposits decimal.Decimal `json:"total_deposits"`
	TotalCharges  decimal.Decimal `json:"total_charges"`
	NetDelta      decimal.Decimal `json:"net_delta"`

	CallCharges      decimal.Decimal `json:"call_charges"`
	AdminAdjustments decimal.Decimal `json:"admin_adjustments"`

	TransactionCount int `json:"transaction_count"`
}
