package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callcenter-platform/pkg/utils"

	"github.com/shopspring/decimal"
)

// PostgresRepo implements Repository against the following tables:
// - user_credits
// - credit_transactions (immutable append-only)
//
// Serialization strategy: every money mutation locks the user_credits row
// (SELECT ... FOR UPDATE) and appends the transaction row in the same
// database transaction. The read-then-write race of naive client-side
// deduction cannot occur here.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) GetOrCreate(ctx context.Context, userID, companyID string, defaults Thresholds) (UserCredits, error) {
	if userID == "" || companyID == "" {
		return UserCredits{}, ErrInvalidArgument
	}

	const q = `
INSERT INTO user_credits (user_id, company_id, current_balance, warning_threshold, critical_threshold, is_blocked, updated_at)
VALUES ($1, $2, 0, $3, $4, TRUE, $5)
ON CONFLICT (user_id) DO UPDATE SET user_id = user_credits.user_id
RETURNING user_id, company_id, current_balance, warning_threshold, critical_threshold, is_blocked, updated_at
`
	// A fresh row starts at zero balance and therefore blocked; the first
	// deposit unblocks it.
	now := r.clock().UTC()
	return scanCredits(r.db.QueryRowContext(ctx, q, userID, companyID, defaults.Warning, defaults.Critical, now))
}

func (r *PostgresRepo) Get(ctx context.Context, userID string) (UserCredits, error) {
	if userID == "" {
		return UserCredits{}, ErrInvalidArgument
	}
	const q = `
SELECT user_id, company_id, current_balance, warning_threshold, critical_threshold, is_blocked, updated_at
FROM user_credits
WHERE user_id = $1
`
	return scanCredits(r.db.QueryRowContext(ctx, q, userID))
}

func (r *PostgresRepo) ApplyCharge(ctx context.Context, txn CreditTransaction) (UserCredits, error) {
	var out UserCredits
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := lockCredits(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}

		// Replay dedup must happen under the row lock; a pre-check outside
		// this transaction races with a concurrent copy of the same webhook.
		// The unique index on credit_transactions(call_id) is the backstop.
		if txn.CallID != "" {
			dup, err := chargeExists(ctx, tx, txn.CallID)
			if err != nil {
				return err
			}
			if dup {
				return ErrDuplicateCall
			}
		}

		if cur.IsBlocked {
			return ErrAccountBlocked
		}

		cost := txn.Amount.Neg()
		if cur.CurrentBalance.LessThan(cost) {
			return ErrInsufficientBalance
		}

		newBalance := cur.CurrentBalance.Sub(cost)
		if newBalance.IsNegative() {
			newBalance = decimal.Zero
		}
		blocked := newBalance.LessThanOrEqual(decimal.Zero)

		now := r.clock().UTC()
		updated, err := writeBalance(ctx, tx, txn.UserID, newBalance, blocked, now)
		if err != nil {
			return err
		}

		txn.CompanyID = cur.CompanyID
		txn.BalanceAfter = newBalance
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		out = updated
		return nil
	})
	return out, err
}

func (r *PostgresRepo) ApplyAdjustment(ctx context.Context, txn CreditTransaction) (UserCredits, error) {
	var out UserCredits
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		cur, err := lockCredits(ctx, tx, txn.UserID)
		if err != nil {
			return err
		}

		newBalance := cur.CurrentBalance.Add(txn.Amount)
		if newBalance.IsNegative() {
			// Negative remainders are floored to zero; the transaction row
			// still records the full requested amount.
			newBalance = decimal.Zero
		}
		blocked := newBalance.LessThanOrEqual(decimal.Zero)

		now := r.clock().UTC()
		updated, err := writeBalance(ctx, tx, txn.UserID, newBalance, blocked, now)
		if err != nil {
			return err
		}

		txn.CompanyID = cur.CompanyID
		txn.BalanceAfter = newBalance
		if err := insertTransaction(ctx, tx, txn); err != nil {
			return err
		}

		out = updated
		return nil
	})
	return out, err
}

func (r *PostgresRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, company_id, amount, transaction_type, description, call_id, balance_after, created_at
FROM credit_transactions
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CreditTransaction
	for rows.Next() {
		var t CreditTransaction
		var desc, callID sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.CompanyID, &t.Amount, &t.Type, &desc, &callID, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Description = desc.String
		t.CallID = callID.String
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) FindByCallID(ctx context.Context, callID string) (CreditTransaction, bool, error) {
	if callID == "" {
		return CreditTransaction{}, false, ErrInvalidArgument
	}
	const q = `
SELECT id, user_id, company_id, amount, transaction_type, description, call_id, balance_after, created_at
FROM credit_transactions
WHERE call_id = $1 AND transaction_type = $2
LIMIT 1
`
	var t CreditTransaction
	var desc, cid sql.NullString
	err := r.db.QueryRowContext(ctx, q, callID, TransactionTypeCallCharge).Scan(
		&t.ID, &t.UserID, &t.CompanyID, &t.Amount, &t.Type, &desc, &cid, &t.BalanceAfter, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CreditTransaction{}, false, nil
		}
		return CreditTransaction{}, false, err
	}
	t.Description = desc.String
	t.CallID = cid.String
	return t, true, nil
}

func chargeExists(ctx context.Context, tx *sql.Tx, callID string) (bool, error) {
	const q = `
SELECT 1
FROM credit_transactions
WHERE call_id = $1 AND transaction_type = $2
LIMIT 1
`
	var one int
	err := tx.QueryRowContext(ctx, q, callID, TransactionTypeCallCharge).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func lockCredits(ctx context.Context, tx *sql.Tx, userID string) (UserCredits, error) {
	const q = `
SELECT user_id, company_id, current_balance, warning_threshold, critical_threshold, is_blocked, updated_at
FROM user_credits
WHERE user_id = $1
FOR UPDATE
`
	return scanCredits(tx.QueryRowContext(ctx, q, userID))
}

func writeBalance(ctx context.Context, tx *sql.Tx, userID string, balance decimal.Decimal, blocked bool, now time.Time) (UserCredits, error) {
	const q = `
UPDATE user_credits
SET current_balance = $2, is_blocked = $3, updated_at = $4
WHERE user_id = $1
RETURNING user_id, company_id, current_balance, warning_threshold, critical_threshold, is_blocked, updated_at
`
	return scanCredits(tx.QueryRowContext(ctx, q, userID, balance, blocked, now))
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t CreditTransaction) error {
	const q = `
INSERT INTO credit_transactions (id, user_id, company_id, amount, transaction_type, description, call_id, balance_after, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NULLIF($7,''),$8,$9)
`
	_, err := tx.ExecContext(ctx, q,
		t.ID,
		t.UserID,
		t.CompanyID,
		t.Amount,
		t.Type,
		t.Description,
		t.CallID,
		t.BalanceAfter,
		t.CreatedAt,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredits(row rowScanner) (UserCredits, error) {
	var c UserCredits
	err := row.Scan(
		&c.UserID,
		&c.CompanyID,
		&c.CurrentBalance,
		&c.WarningThreshold,
		&c.CriticalThreshold,
		&c.IsBlocked,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return UserCredits{}, ErrNotFound
		}
		return UserCredits{}, err
	}
	return c, nil
}
