package agentsync

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("agentsync: run not found")

// Repository persists sync run history.
type Repository interface {
	// Begin inserts a new run in the running state and returns it.
	Begin(ctx context.Context, trigger Trigger) (SyncRun, error)

	// Complete moves a running run to completed with its counts.
	Complete(ctx context.Context, runID string, created, updated, deactivated int) (SyncRun, error)

	// Fail moves a running run to failed with the failure reason.
	Fail(ctx context.Context, runID string, reason string) (SyncRun, error)

	// ListRecent returns the newest runs first.
	ListRecent(ctx context.Context, limit int) ([]SyncRun, error)
}

// PostgresRepo stores runs in the agent_sync_runs table.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

const runColumns = `id, status, trigger_kind, agents_created, agents_updated, agents_deactivated, error, started_at, completed_at`

func (r *PostgresRepo) Begin(ctx context.Context, trigger Trigger) (SyncRun, error) {
	const q = `
INSERT INTO agent_sync_runs (id, status, trigger_kind, started_at)
VALUES ($1, $2, $3, $4)
RETURNING ` + runColumns
	return scanRun(r.db.QueryRowContext(ctx, q, uuid.NewString(), RunStatusRunning, trigger, r.clock().UTC()))
}

func (r *PostgresRepo) Complete(ctx context.Context, runID string, created, updated, deactivated int) (SyncRun, error) {
	const q = `
UPDATE agent_sync_runs
SET status = $2, agents_created = $3, agents_updated = $4, agents_deactivated = $5, completed_at = $6
WHERE id = $1 AND status = $7
RETURNING ` + runColumns
	return scanRun(r.db.QueryRowContext(ctx, q, runID, RunStatusCompleted, created, updated, deactivated, r.clock().UTC(), RunStatusRunning))
}

func (r *PostgresRepo) Fail(ctx context.Context, runID string, reason string) (SyncRun, error) {
	const q = `
UPDATE agent_sync_runs
SET status = $2, error = $3, completed_at = $4
WHERE id = $1 AND status = $5
RETURNING ` + runColumns
	return scanRun(r.db.QueryRowContext(ctx, q, runID, RunStatusFailed, reason, r.clock().UTC(), RunStatusRunning))
}

func (r *PostgresRepo) ListRecent(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + runColumns + `
FROM agent_sync_runs
ORDER BY started_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (SyncRun, error) {
	var run SyncRun
	var errMsg sql.NullString
	var completed sql.NullTime
	err := row.Scan(
		&run.ID, &run.Status, &run.Trigger,
		&run.AgentsCreated, &run.AgentsUpdated, &run.AgentsDeactivated,
		&errMsg, &run.StartedAt, &completed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SyncRun{}, ErrNotFound
		}
		return SyncRun{}, err
	}
	run.Error = errMsg.String
	if completed.Valid {
		t := completed.Time
		run.CompletedAt = &t
	}
	return run, nil
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	runs  map[string]*SyncRun
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{runs: make(map[string]*SyncRun), clock: time.Now}
}

func (r *MemoryRepo) Begin(ctx context.Context, trigger Trigger) (SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run := &SyncRun{
		ID:        uuid.NewString(),
		Status:    RunStatusRunning,
		Trigger:   trigger,
		StartedAt: r.clock().UTC(),
	}
	r.runs[run.ID] = run
	return *run, nil
}

func (r *MemoryRepo) Complete(ctx context.Context, runID string, created, updated, deactivated int) (SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok || run.Status != RunStatusRunning {
		return SyncRun{}, ErrNotFound
	}
	now := r.clock().UTC()
	run.Status = RunStatusCompleted
	run.AgentsCreated = created
	run.AgentsUpdated = updated
	run.AgentsDeactivated = deactivated
	run.CompletedAt = &now
	return *run, nil
}

func (r *MemoryRepo) Fail(ctx context.Context, runID string, reason string) (SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok || run.Status != RunStatusRunning {
		return SyncRun{}, ErrNotFound
	}
	now := r.clock().UTC()
	run.Status = RunStatusFailed
	run.Error = reason
	run.CompletedAt = &now
	return *run, nil
}

func (r *MemoryRepo) ListRecent(ctx context.Context, limit int) ([]SyncRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 {
		limit = 20
	}
	out := make([]SyncRun, 0, len(r.runs))
	for _, run := range r.runs {
		out = append(out, *run)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
