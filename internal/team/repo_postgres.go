package team

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"callcenter-platform/pkg/utils"
)

// PostgresRepo implements Repository against the teams and invitations
// tables.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) GetTeam(ctx context.Context, teamID string) (Team, error) {
	if teamID == "" {
		return Team{}, ErrInvalidArgument
	}
	const q = `SELECT id, company_id, name, seat_limit, seats_used FROM teams WHERE id = $1`
	var t Team
	err := r.db.QueryRowContext(ctx, q, teamID).Scan(&t.ID, &t.CompanyID, &t.Name, &t.SeatLimit, &t.SeatsUsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, ErrTeamNotFound
		}
		return Team{}, err
	}
	return t, nil
}

const inviteColumns = `id, team_id, company_id, email, role, token, expires_at, delivery_status, accepted_at, created_at`

func (r *PostgresRepo) CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	const q = `
INSERT INTO invitations (` + inviteColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,$9)
RETURNING ` + inviteColumns
	return scanInvite(r.db.QueryRowContext(ctx, q,
		inv.ID, inv.TeamID, inv.CompanyID, inv.Email, inv.Role,
		inv.Token, inv.ExpiresAt, inv.DeliveryStatus, inv.CreatedAt,
	))
}

func (r *PostgresRepo) GetInvitation(ctx context.Context, id string) (Invitation, error) {
	if id == "" {
		return Invitation{}, ErrInvalidArgument
	}
	const q = `SELECT ` + inviteColumns + ` FROM invitations WHERE id = $1`
	return scanInvite(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetInvitationByToken(ctx context.Context, token string) (Invitation, error) {
	if token == "" {
		return Invitation{}, ErrInvalidArgument
	}
	const q = `SELECT ` + inviteColumns + ` FROM invitations WHERE token = $1`
	return scanInvite(r.db.QueryRowContext(ctx, q, token))
}

func (r *PostgresRepo) SetDeliveryStatus(ctx context.Context, invitationID string, status DeliveryStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET delivery_status = $2 WHERE id = $1`, invitationID, status)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInviteNotFound
	}
	return nil
}

func (r *PostgresRepo) Accept(ctx context.Context, invitationID string, acceptedAt time.Time) (Invitation, error) {
	var out Invitation
	err := utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const lockQ = `SELECT ` + inviteColumns + ` FROM invitations WHERE id = $1 FOR UPDATE`
		inv, err := scanInvite(tx.QueryRowContext(ctx, lockQ, invitationID))
		if err != nil {
			return err
		}
		if inv.AcceptedAt != nil {
			return ErrInviteConsumed
		}

		// The seat is consumed here, not at invite creation, so unaccepted
		// invites never hold seats.
		res, err := tx.ExecContext(ctx, `
UPDATE teams SET seats_used = seats_used + 1
WHERE id = $1 AND seats_used < seat_limit
`, inv.TeamID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrSeatLimitReached
		}

		const acceptQ = `
UPDATE invitations SET accepted_at = $2 WHERE id = $1
RETURNING ` + inviteColumns
		out, err = scanInvite(tx.QueryRowContext(ctx, acceptQ, invitationID, acceptedAt))
		return err
	})
	if err != nil {
		return Invitation{}, err
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvite(row rowScanner) (Invitation, error) {
	var inv Invitation
	var accepted sql.NullTime
	err := row.Scan(
		&inv.ID, &inv.TeamID, &inv.CompanyID, &inv.Email, &inv.Role,
		&inv.Token, &inv.ExpiresAt, &inv.DeliveryStatus, &accepted, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Invitation{}, ErrInviteNotFound
		}
		return Invitation{}, err
	}
	if accepted.Valid {
		t := accepted.Time
		inv.AcceptedAt = &t
	}
	return inv, nil
}
