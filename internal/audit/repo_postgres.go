package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends events to the audit_events table. Insert-only.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events
  (id, company_id, type, actor_user_id, actor_role, ip_address,
   target_user_id, invitation_id, sync_run_id, call_id, message, metadata, created_at)
VALUES
  ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),NULLIF($6,''),
   NULLIF($7,''),NULLIF($8,''),NULLIF($9,''),NULLIF($10,''),NULLIF($11,''),NULLIF($12,''),$13)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, e.CompanyID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.TargetUserID, e.InvitationID, e.SyncRunID, e.CallID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
