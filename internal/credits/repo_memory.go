package credits

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryRepo is an in-memory Repository for tests.
// It honors the same serialization and clamping semantics as PostgresRepo.
type MemoryRepo struct {
	mu       sync.Mutex
	accounts map[string]UserCredits
	txns     []CreditTransaction
	clock    func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		accounts: make(map[string]UserCredits),
		clock:    time.Now,
	}
}

// Seed installs an account directly, bypassing the implicit-create path.
func (r *MemoryRepo) Seed(c UserCredits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[c.UserID] = c
}

func (r *MemoryRepo) GetOrCreate(ctx context.Context, userID, companyID string, defaults Thresholds) (UserCredits, error) {
	if userID == "" || companyID == "" {
		return UserCredits{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.accounts[userID]; ok {
		return c, nil
	}
	c := UserCredits{
		UserID:            userID,
		CompanyID:         companyID,
		CurrentBalance:    decimal.Zero,
		WarningThreshold:  defaults.Warning,
		CriticalThreshold: defaults.Critical,
		IsBlocked:         true,
		UpdatedAt:         r.clock().UTC(),
	}
	r.accounts[userID] = c
	return c, nil
}

func (r *MemoryRepo) Get(ctx context.Context, userID string) (UserCredits, error) {
	if userID == "" {
		return UserCredits{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.accounts[userID]
	if !ok {
		return UserCredits{}, ErrNotFound
	}
	return c, nil
}

func (r *MemoryRepo) ApplyCharge(ctx context.Context, txn CreditTransaction) (UserCredits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if txn.CallID != "" {
		for _, t := range r.txns {
			if t.CallID == txn.CallID && t.Type == TransactionTypeCallCharge {
				return UserCredits{}, ErrDuplicateCall
			}
		}
	}

	cur, ok := r.accounts[txn.UserID]
	if !ok {
		return UserCredits{}, ErrNotFound
	}
	if cur.IsBlocked {
		return UserCredits{}, ErrAccountBlocked
	}
	cost := txn.Amount.Neg()
	if cur.CurrentBalance.LessThan(cost) {
		return UserCredits{}, ErrInsufficientBalance
	}

	newBalance := cur.CurrentBalance.Sub(cost)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}
	cur.CurrentBalance = newBalance
	cur.IsBlocked = newBalance.LessThanOrEqual(decimal.Zero)
	cur.UpdatedAt = r.clock().UTC()
	r.accounts[txn.UserID] = cur

	txn.CompanyID = cur.CompanyID
	txn.BalanceAfter = newBalance
	r.txns = append(r.txns, txn)
	return cur, nil
}

func (r *MemoryRepo) ApplyAdjustment(ctx context.Context, txn CreditTransaction) (UserCredits, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.accounts[txn.UserID]
	if !ok {
		return UserCredits{}, ErrNotFound
	}

	newBalance := cur.CurrentBalance.Add(txn.Amount)
	if newBalance.IsNegative() {
		newBalance = decimal.Zero
	}
	cur.CurrentBalance = newBalance
	cur.IsBlocked = newBalance.LessThanOrEqual(decimal.Zero)
	cur.UpdatedAt = r.clock().UTC()
	r.accounts[txn.UserID] = cur

	txn.CompanyID = cur.CompanyID
	txn.BalanceAfter = newBalance
	r.txns = append(r.txns, txn)
	return cur, nil
}

func (r *MemoryRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []CreditTransaction
	for i := len(r.txns) - 1; i >= 0 && len(out) < limit; i-- {
		if r.txns[i].UserID == userID {
			out = append(out, r.txns[i])
		}
	}
	return out, nil
}

func (r *MemoryRepo) FindByCallID(ctx context.Context, callID string) (CreditTransaction, bool, error) {
	if callID == "" {
		return CreditTransaction{}, false, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.txns {
		if t.CallID == callID && t.Type == TransactionTypeCallCharge {
			return t, true, nil
		}
	}
	return CreditTransaction{}, false, nil
}

// Transactions returns a copy of all recorded transactions, oldest first.
func (r *MemoryRepo) Transactions() []CreditTransaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]CreditTransaction, len(r.txns))
	copy(out, r.txns)
	return out
}
