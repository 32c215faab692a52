package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/credits"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
// It enforces company isolation on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Calls        []calls.Call
	Transactions []credits.CreditTransaction
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCalls(ctx context.Context, companyID string, from, to time.Time, userID string) ([]calls.Call, error) {
	if companyID == "" {
		return nil, errors.New("company_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.Call, 0)
	for _, c := range r.Calls {
		if c.CompanyID != companyID {
			continue
		}
		if !c.CreatedAt.IsZero() {
			if c.CreatedAt.Before(from) || !c.CreatedAt.Before(to) {
				continue
			}
		}
		if userID != "" && c.UserID != userID {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *MemoryRepo) ListTransactions(ctx context.Context, companyID string, from, to time.Time, userID string) ([]credits.CreditTransaction, error) {
	if companyID == "" {
		return nil, errors.New("company_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]credits.CreditTransaction, 0)
	for _, t := range r.Transactions {
		if t.CompanyID != companyID {
			continue
		}
		if !t.CreatedAt.IsZero() {
			if t.CreatedAt.Before(from) || !t.CreatedAt.Before(to) {
				continue
			}
		}
		if userID != "" && t.UserID != userID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}
