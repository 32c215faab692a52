package credits

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserCredits is the per-user credit balance row.
//
// Invariants:
// - is_blocked is true whenever current_balance <= 0.
// - current_balance never goes below zero; writes clamp at zero.
// - Mutated only through the credits service (call charge or admin adjustment).
// - Created implicitly with configured default thresholds on first balance check.
type UserCredits struct {
	UserID    string `json:"user_id" db:"user_id"`
	CompanyID string `json:"company_id" db:"company_id"`

	CurrentBalance    decimal.Decimal `json:"current_balance" db:"current_balance"`
	WarningThreshold  decimal.Decimal `json:"warning_threshold" db:"warning_threshold"`
	CriticalThreshold decimal.Decimal `json:"critical_threshold" db:"critical_threshold"`

	IsBlocked bool `json:"is_blocked" db:"is_blocked"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CreditTransaction is an immutable append-only record of one balance mutation.
// Amount is signed: charges and deductions are negative, deposits positive.
// Written in the same database transaction as the balance change.
type CreditTransaction struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	CompanyID string `json:"company_id" db:"company_id"`

	Amount decimal.Decimal `json:"amount" db:"amount"`
	Type   TransactionType `json:"transaction_type" db:"transaction_type"`

	Description string `json:"description,omitempty" db:"description"`

	// CallID links call charges to the ingested call record.
	CallID string `json:"call_id,omitempty" db:"call_id"`

	BalanceAfter decimal.Decimal `json:"balance_after" db:"balance_after"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "deposit"
	TransactionTypeDeduction  TransactionType = "deduction"
	TransactionTypeAdjustment TransactionType = "adjustment"
	TransactionTypeCallCharge TransactionType = "call_charge"
)

// BalanceAlert classifies a post-write balance against the user's thresholds.
type BalanceAlert string

const (
	AlertNone     BalanceAlert = ""
	AlertWarning  BalanceAlert = "warning"
	AlertCritical BalanceAlert = "critical"
	AlertBlocked  BalanceAlert = "blocked"
)

// EvaluateAlert returns the alert owed after a balance write.
// Blocked wins over critical, critical over warning.
func EvaluateAlert(c UserCredits) BalanceAlert {
	switch {
	case c.IsBlocked || c.CurrentBalance.LessThanOrEqual(decimal.Zero):
		return AlertBlocked
	case c.CurrentBalance.LessThan(c.CriticalThreshold):
		return AlertCritical
	case c.CurrentBalance.LessThan(c.WarningThreshold):
		return AlertWarning
	default:
		return AlertNone
	}
}

// Thresholds are the defaults applied when a credits row is created implicitly.
type Thresholds struct {
	Warning  decimal.Decimal
	Critical decimal.Decimal
}

// BalanceSummary is the merged balance view served to the dashboard:
// current balance, derived low-balance flags, estimated remaining minutes,
// and recent transactions.
type BalanceSummary struct {
	UserID    string `json:"user_id"`
	CompanyID string `json:"company_id"`

	CurrentBalance    decimal.Decimal `json:"current_balance"`
	WarningThreshold  decimal.Decimal `json:"warning_threshold"`
	CriticalThreshold decimal.Decimal `json:"critical_threshold"`
	IsBlocked         bool            `json:"is_blocked"`
	IsLowBalance      bool            `json:"is_low_balance"`

	// RemainingMinutes estimates talk time left at the assumed per-minute rate.
	RemainingMinutes int64 `json:"remaining_minutes"`

	RecentTransactions []CreditTransaction `json:"recent_transactions"`

	UpdatedAt time.Time `json:"updated_at"`
}
