package calls

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound        = errors.New("calls: not found")
	ErrInvalidArgument = errors.New("calls: invalid argument")
)

// Repository persists call records.
type Repository interface {
	// Insert stores a call. When a row with the same external call id
	// already exists, Insert returns that row instead of inserting; the
	// check and the insert are atomic, so two concurrent copies of the
	// same webhook can never both land.
	Insert(ctx context.Context, c Call) (Call, error)

	// FindByExternalID looks a call up by the provider call id.
	FindByExternalID(ctx context.Context, externalCallID string) (Call, bool, error)

	// MarkBilled flips an unbilled call to billed after reconciliation.
	MarkBilled(ctx context.Context, callID string) error

	// ListByUser returns the user's calls, newest first.
	ListByUser(ctx context.Context, userID string, limit int) ([]Call, error)
}

// PostgresRepo stores calls in the calls table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const callColumns = `id, external_call_id, user_id, company_id, agent_id, from_number, to_number,
duration_seconds, cost, status, billing_status, sentiment, transcript_url, recording_url,
started_at, ended_at, created_at`

func (r *PostgresRepo) Insert(ctx context.Context, c Call) (Call, error) {
	if c.ID == "" || c.ExternalCallID == "" || c.UserID == "" {
		return Call{}, ErrInvalidArgument
	}
	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),NULLIF($7,''),$8,$9,$10,$11,NULLIF($12,''),NULLIF($13,''),NULLIF($14,''),$15,$16,$17)
ON CONFLICT (external_call_id) DO NOTHING
RETURNING ` + callColumns
	stored, err := scanCall(r.db.QueryRowContext(ctx, q,
		c.ID, c.ExternalCallID, c.UserID, c.CompanyID, c.AgentID,
		c.FromNumber, c.ToNumber, c.DurationSeconds, c.Cost, c.Status, c.BillingStatus,
		c.Sentiment, c.TranscriptURL, c.RecordingURL, c.StartedAt, c.EndedAt, c.CreatedAt,
	))
	if errors.Is(err, ErrNotFound) {
		// Conflict: a concurrent insert won. Return its row.
		existing, ok, ferr := r.FindByExternalID(ctx, c.ExternalCallID)
		if ferr != nil {
			return Call{}, ferr
		}
		if !ok {
			return Call{}, err
		}
		return existing, nil
	}
	return stored, err
}

func (r *PostgresRepo) FindByExternalID(ctx context.Context, externalCallID string) (Call, bool, error) {
	if externalCallID == "" {
		return Call{}, false, ErrInvalidArgument
	}
	const q = `SELECT ` + callColumns + ` FROM calls WHERE external_call_id = $1`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, externalCallID))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Call{}, false, nil
		}
		return Call{}, false, err
	}
	return c, true, nil
}

func (r *PostgresRepo) MarkBilled(ctx context.Context, callID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE calls SET billing_status = $2 WHERE id = $1`, callID, BillingStatusBilled)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Call, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE user_id = $1
ORDER BY started_at DESC
LIMIT $2
`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var c Call
	var from, to, sentiment, transcript, rec sql.NullString
	err := row.Scan(
		&c.ID, &c.ExternalCallID, &c.UserID, &c.CompanyID, &c.AgentID,
		&from, &to, &c.DurationSeconds, &c.Cost, &c.Status, &c.BillingStatus,
		&sentiment, &transcript, &rec, &c.StartedAt, &c.EndedAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	c.FromNumber = from.String
	c.ToNumber = to.String
	c.Sentiment = sentiment.String
	c.TranscriptURL = transcript.String
	c.RecordingURL = rec.String
	return c, nil
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	calls []*Call
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Insert(ctx context.Context, c Call) (Call, error) {
	if c.ID == "" || c.ExternalCallID == "" || c.UserID == "" {
		return Call{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.calls {
		if existing.ExternalCallID == c.ExternalCallID {
			return *existing, nil
		}
	}
	stored := c
	r.calls = append(r.calls, &stored)
	return stored, nil
}

func (r *MemoryRepo) FindByExternalID(ctx context.Context, externalCallID string) (Call, bool, error) {
	if externalCallID == "" {
		return Call{}, false, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.ExternalCallID == externalCallID {
			return *c, true, nil
		}
	}
	return Call{}, false, nil
}

func (r *MemoryRepo) MarkBilled(ctx context.Context, callID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if c.ID == callID {
			c.BillingStatus = BillingStatusBilled
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Call, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Call
	for _, c := range r.calls {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
