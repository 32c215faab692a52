package users

import (
	"context"
	"database/sql"
	"errors"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const userColumns = `id, company_id, email, COALESCE(name, ''), role, password_hash, is_active, created_at`

func (r *PostgresRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	return r.scanOne(r.db.QueryRowContext(ctx, q, normalizeEmail(email)))
}

func (r *PostgresRepo) GetByID(ctx context.Context, id string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) scanOne(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.CompanyID, &u.Email, &u.Name, &u.Role, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
