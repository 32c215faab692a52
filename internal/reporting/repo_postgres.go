package reporting

import (
	"context"
	"database/sql"
	"time"

	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/credits"
)

// PostgresRepo reads the calls and credit_transactions tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListCalls(ctx context.Context, companyID string, from, to time.Time, userID string) ([]calls.Call, error) {
	const q = `
SELECT id, external_call_id, user_id, company_id, agent_id,
       COALESCE(from_number, ''), COALESCE(to_number, ''),
       duration_seconds, cost, status, billing_status,
       COALESCE(sentiment, ''), COALESCE(transcript_url, ''), COALESCE(recording_url, ''),
       started_at, ended_at, created_at
FROM calls
WHERE company_id = $1
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR user_id = $4)
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, companyID, from, to, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []calls.Call
	for rows.Next() {
		var c calls.Call
		if err := rows.Scan(
			&c.ID, &c.ExternalCallID, &c.UserID, &c.CompanyID, &c.AgentID,
			&c.FromNumber, &c.ToNumber, &c.DurationSeconds, &c.Cost, &c.Status, &c.BillingStatus,
			&c.Sentiment, &c.TranscriptURL, &c.RecordingURL,
			&c.StartedAt, &c.EndedAt, &c.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListTransactions(ctx context.Context, companyID string, from, to time.Time, userID string) ([]credits.CreditTransaction, error) {
	const q = `
SELECT id, user_id, company_id, amount, transaction_type, COALESCE(description, ''), COALESCE(call_id, ''), balance_after, created_at
FROM credit_transactions
WHERE company_id = $1
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR user_id = $4)
ORDER BY created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, companyID, from, to, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []credits.CreditTransaction
	for rows.Next() {
		var t credits.CreditTransaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.CompanyID, &t.Amount, &t.Type, &t.Description, &t.CallID, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
