package alerts

import (
	"context"
	"database/sql"
	"sync"
)

// Repository provides the low-balance aggregation.
type Repository interface {
	// ListBelowWarning returns every user at or below their warning
	// threshold, unclassified. Classification happens in the service so the
	// level cutoffs live in one place.
	ListBelowWarning(ctx context.Context) ([]LowBalanceUser, error)
}

// PostgresRepo reads the user_credits table joined to users for the
// notification email address.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListBelowWarning(ctx context.Context) ([]LowBalanceUser, error) {
	const q = `
SELECT c.user_id, c.company_id, COALESCE(u.email, ''), c.current_balance, c.warning_threshold, c.critical_threshold
FROM user_credits c
LEFT JOIN users u ON u.id = c.user_id
WHERE c.current_balance <= c.warning_threshold
ORDER BY c.current_balance ASC
`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LowBalanceUser
	for rows.Next() {
		var u LowBalanceUser
		if err := rows.Scan(&u.UserID, &u.CompanyID, &u.Email, &u.CurrentBalance, &u.WarningThreshold, &u.CriticalThreshold); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu    sync.Mutex
	users []LowBalanceUser
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) SetUsers(users []LowBalanceUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append([]LowBalanceUser(nil), users...)
}

func (r *MemoryRepo) ListBelowWarning(ctx context.Context) ([]LowBalanceUser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []LowBalanceUser
	for _, u := range r.users {
		if u.CurrentBalance.LessThanOrEqual(u.WarningThreshold) {
			out = append(out, u)
		}
	}
	return out, nil
}
