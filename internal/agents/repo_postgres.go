package agents

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callcenter-platform/pkg/utils"

	"github.com/google/uuid"
)

// PostgresRepo implements Repository against the agents and
// user_agent_assignments tables.
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) UpsertByRetellID(ctx context.Context, a Agent) (UpsertResult, error) {
	if a.RetellAgentID == "" {
		return UpsertResult{}, ErrInvalidArgument
	}

	// Sync reactivates inactive agents; maintenance is operator-set and
	// survives the upsert, as do company_id and rate_per_minute.
	const q = `
INSERT INTO agents (id, retell_agent_id, company_id, name, voice_id, language, rate_per_minute, status, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, 'active', $8, $8)
ON CONFLICT (retell_agent_id) DO UPDATE
SET name = EXCLUDED.name, voice_id = EXCLUDED.voice_id, language = EXCLUDED.language,
    status = CASE WHEN agents.status = 'inactive' THEN 'active' ELSE agents.status END,
    updated_at = EXCLUDED.updated_at
RETURNING id, retell_agent_id, COALESCE(company_id, ''), name, voice_id, language, rate_per_minute,
          status, created_at, updated_at, (created_at = updated_at) AS inserted
`
	now := r.clock().UTC()
	var out UpsertResult
	var voice, lang sql.NullString
	err := r.db.QueryRowContext(ctx, q,
		uuid.NewString(), a.RetellAgentID, a.CompanyID, a.Name, a.VoiceID, a.Language, a.RatePerMinute, now,
	).Scan(
		&out.Agent.ID, &out.Agent.RetellAgentID, &out.Agent.CompanyID, &out.Agent.Name, &voice, &lang,
		&out.Agent.RatePerMinute, &out.Agent.Status, &out.Agent.CreatedAt, &out.Agent.UpdatedAt, &out.Created,
	)
	if err != nil {
		return UpsertResult{}, err
	}
	out.Agent.VoiceID = voice.String
	out.Agent.Language = lang.String
	return out, nil
}

func (r *PostgresRepo) DeactivateMissing(ctx context.Context, keep []string) (int, error) {
	const q = `
UPDATE agents
SET status = 'inactive', updated_at = $2
WHERE status = 'active' AND retell_agent_id <> ALL($1)
`
	// The pgx stdlib driver binds a []string to a text[] parameter.
	res, err := r.db.ExecContext(ctx, q, keep, r.clock().UTC())
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]Agent, error) {
	const q = `
SELECT id, retell_agent_id, COALESCE(company_id, ''), name, voice_id, language, rate_per_minute, status, created_at, updated_at
FROM agents
WHERE status = 'active'
ORDER BY name ASC
`
	return r.queryAgents(ctx, q)
}

func (r *PostgresRepo) ListUnassigned(ctx context.Context) ([]Agent, error) {
	const q = `
SELECT a.id, a.retell_agent_id, COALESCE(a.company_id, ''), a.name, a.voice_id, a.language, a.rate_per_minute, a.status, a.created_at, a.updated_at
FROM agents a
LEFT JOIN user_agent_assignments s ON s.agent_id = a.id
WHERE a.status = 'active' AND s.id IS NULL
ORDER BY a.name ASC
`
	return r.queryAgents(ctx, q)
}

func (r *PostgresRepo) GetByRetellID(ctx context.Context, retellAgentID string) (Agent, error) {
	if retellAgentID == "" {
		return Agent{}, ErrInvalidArgument
	}
	const q = `
SELECT id, retell_agent_id, COALESCE(company_id, ''), name, voice_id, language, rate_per_minute, status, created_at, updated_at
FROM agents
WHERE retell_agent_id = $1
`
	agents, err := r.queryAgents(ctx, q, retellAgentID)
	if err != nil {
		return Agent{}, err
	}
	if len(agents) == 0 {
		return Agent{}, ErrNotFound
	}
	return agents[0], nil
}

func (r *PostgresRepo) SetPrimary(ctx context.Context, userID, companyID, agentID string) (Assignment, error) {
	if userID == "" || companyID == "" || agentID == "" {
		return Assignment{}, ErrInvalidArgument
	}

	var out Assignment
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var status Status
		err := tx.QueryRowContext(ctx, `SELECT status FROM agents WHERE id = $1 FOR SHARE`, agentID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if !status.Assignable() {
			return ErrInactiveAgent
		}

		// Demote any existing primary before promoting the new one, keeping
		// the one-primary-per-user invariant inside the transaction.
		if _, err := tx.ExecContext(ctx,
			`UPDATE user_agent_assignments SET is_primary = FALSE WHERE user_id = $1 AND is_primary`, userID); err != nil {
			return err
		}

		const upsert = `
INSERT INTO user_agent_assignments (id, user_id, company_id, agent_id, is_primary, created_at)
VALUES ($1, $2, $3, $4, TRUE, $5)
ON CONFLICT (user_id, agent_id) DO UPDATE SET is_primary = TRUE
RETURNING id, user_id, company_id, agent_id, is_primary, created_at
`
		return tx.QueryRowContext(ctx, upsert, uuid.NewString(), userID, companyID, agentID, r.clock().UTC()).Scan(
			&out.ID, &out.UserID, &out.CompanyID, &out.AgentID, &out.IsPrimary, &out.CreatedAt,
		)
	})
	return out, err
}

func (r *PostgresRepo) ListAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	const q = `
SELECT id, user_id, company_id, agent_id, is_primary, created_at
FROM user_agent_assignments
WHERE user_id = $1
ORDER BY is_primary DESC, created_at ASC
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.CompanyID, &a.AgentID, &a.IsPrimary, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ResolvePrimaryUser(ctx context.Context, retellAgentID string) (Assignment, error) {
	if retellAgentID == "" {
		return Assignment{}, ErrInvalidArgument
	}
	const q = `
SELECT s.id, s.user_id, s.company_id, s.agent_id, s.is_primary, s.created_at
FROM user_agent_assignments s
JOIN agents a ON a.id = s.agent_id
WHERE a.retell_agent_id = $1 AND s.is_primary
LIMIT 1
`
	var out Assignment
	err := r.db.QueryRowContext(ctx, q, retellAgentID).Scan(
		&out.ID, &out.UserID, &out.CompanyID, &out.AgentID, &out.IsPrimary, &out.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Assignment{}, ErrNotFound
		}
		return Assignment{}, err
	}
	return out, nil
}

func (r *PostgresRepo) queryAgents(ctx context.Context, q string, args ...any) ([]Agent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Agent
	for rows.Next() {
		var a Agent
		var voice, lang sql.NullString
		if err := rows.Scan(&a.ID, &a.RetellAgentID, &a.CompanyID, &a.Name, &voice, &lang, &a.RatePerMinute, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.VoiceID = voice.String
		a.Language = lang.String
		out = append(out, a)
	}
	return out, rows.Err()
}
