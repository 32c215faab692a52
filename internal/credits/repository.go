package credits

import (
	"context"
	"errors"
)

var (
	ErrNotFound            = errors.New("credits: not found")
	ErrInsufficientBalance = errors.New("credits: insufficient balance")
	ErrAccountBlocked      = errors.New("credits: account blocked, contact administrator")
	ErrDuplicateCall       = errors.New("credits: call already charged")
	ErrInvalidArgument     = errors.New("credits: invalid argument")
)

// Repository is the persistence contract for the credit pipeline.
//
// Money invariants (owed by every implementation):
// - ApplyCharge and ApplyAdjustment are serialized per user: the balance check,
//   the balance write, and the transaction append happen atomically. Two
//   concurrent charges can never both read the same starting balance.
// - No balance write without a CreditTransaction row.
// - current_balance is clamped at zero; is_blocked is recomputed on every write.
type Repository interface {
	// GetOrCreate returns the user's credits row, creating it with the given
	// defaults on first touch.
	GetOrCreate(ctx context.Context, userID, companyID string, defaults Thresholds) (UserCredits, error)

	// Get returns ErrNotFound when no row exists.
	Get(ctx context.Context, userID string) (UserCredits, error)

	// ApplyCharge debits txn.Amount (negative) from the user's balance.
	// Fails with ErrAccountBlocked on a blocked account and
	// ErrInsufficientBalance when balance < |amount|; neither mutates state.
	// When txn.CallID is set and a call charge for it already exists, fails
	// with ErrDuplicateCall without mutating state. The duplicate check runs
	// under the same per-user lock as the balance write, so two concurrent
	// charges for one call can never both land.
	ApplyCharge(ctx context.Context, txn CreditTransaction) (UserCredits, error)

	// ApplyAdjustment applies a signed admin mutation. A negative adjustment
	// that would overdraw clamps the balance at zero.
	ApplyAdjustment(ctx context.Context, txn CreditTransaction) (UserCredits, error)

	// ListTransactions returns the most recent transactions, newest first.
	ListTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error)

	// FindByCallID reports whether a call charge already exists for the
	// external call id. Used to keep webhook replays idempotent.
	FindByCallID(ctx context.Context, callID string) (CreditTransaction, bool, error)
}
