package credits

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callcenter-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Notifier receives threshold alerts produced by balance writes.
// Implementations must be best-effort: a notification failure never fails
// the money operation that triggered it.
type Notifier interface {
	NotifyBalanceAlert(ctx context.Context, account UserCredits, alert BalanceAlert)
}

// ChangePublisher broadcasts balance-change events so other components
// (summary cache, low-balance monitor) can react without polling.
type ChangePublisher interface {
	PublishBalanceChange(ctx context.Context, userID string) error
}

// SummaryCache caches merged balance summaries with a staleness window.
type SummaryCache interface {
	Get(ctx context.Context, userID string) (BalanceSummary, bool)
	Set(ctx context.Context, userID string, s BalanceSummary)
	Invalidate(ctx context.Context, userID string)
}

// Service is the credit deduction and balance pipeline.
//
// Money invariants:
// - Deduction is exactly-once and serialized per user (see Repository).
// - Every balance write appends a transaction row atomically.
// - is_blocked follows current_balance <= 0 after every write.
type Service struct {
	repo      Repository
	notifier  Notifier
	publisher ChangePublisher
	cache     SummaryCache
	log       *slog.Logger

	defaults Thresholds

	// assumedRate converts balance into estimated remaining minutes.
	assumedRate decimal.Decimal

	// recentTxnLimit bounds the transaction list in the merged summary.
	recentTxnLimit int

	clock func() time.Time
}

type ServiceOptions struct {
	Defaults             Thresholds
	AssumedRatePerMinute decimal.Decimal
	RecentTxnLimit       int
}

func NewService(repo Repository, notifier Notifier, publisher ChangePublisher, cache SummaryCache, log *slog.Logger, opts ServiceOptions) *Service {
	if log == nil {
		log = slog.Default()
	}
	if opts.RecentTxnLimit <= 0 {
		opts.RecentTxnLimit = 20
	}
	if opts.AssumedRatePerMinute.LessThanOrEqual(decimal.Zero) {
		opts.AssumedRatePerMinute = decimal.RequireFromString("0.10")
	}
	return &Service{
		repo:           repo,
		notifier:       notifier,
		publisher:      publisher,
		cache:          cache,
		log:            log,
		defaults:       opts.Defaults,
		assumedRate:    opts.AssumedRatePerMinute,
		recentTxnLimit: opts.RecentTxnLimit,
		clock:          time.Now,
	}
}

// EstimateCallCost is the pure per-minute proration: duration/60 * rate.
// Rounded to 4 decimal places; sub-cent precision matters for short calls.
func EstimateCallCost(durationSeconds int, ratePerMinute decimal.Decimal) decimal.Decimal {
	if durationSeconds <= 0 || ratePerMinute.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return ratePerMinute.
		Mul(decimal.NewFromInt(int64(durationSeconds))).
		Div(decimal.NewFromInt(60)).
		Round(4)
}

// CheckSufficientBalance reports whether the user can afford the required
// amount. The credits row is created with defaults on first touch.
// Fails closed: a read error reports false.
func (s *Service) CheckSufficientBalance(ctx context.Context, userID, companyID string, required decimal.Decimal) (bool, error) {
	if userID == "" || required.IsNegative() {
		return false, ErrInvalidArgument
	}
	account, err := s.repo.GetOrCreate(ctx, userID, companyID, s.defaults)
	if err != nil {
		s.log.Error("balance check failed", "user_id", userID, "err", err)
		return false, err
	}
	if account.IsBlocked {
		return false, nil
	}
	return account.CurrentBalance.GreaterThanOrEqual(required), nil
}

type DeductRequest struct {
	UserID    string
	CompanyID string

	// CallID links the charge to the ingested call record.
	CallID string

	Cost            decimal.Decimal
	DurationSeconds int
	Description     string
}

type DeductResult struct {
	RemainingBalance decimal.Decimal
	Blocked          bool
	Alert            BalanceAlert
	TransactionID    string
}

// DeductCredits charges a completed call against the user's balance.
//
// The check-and-decrement and the transaction append are one atomic unit in
// the repository; on insufficient balance or a blocked account nothing is
// mutated. A repeated CallID is a no-op returning the original outcome, so
// webhook replays cannot double-charge. The pre-check below is a fast path
// only; the repository re-checks under the per-user lock, which is what
// holds when two copies of the same webhook race.
func (s *Service) DeductCredits(ctx context.Context, req DeductRequest) (DeductResult, error) {
	if req.UserID == "" || req.Cost.LessThanOrEqual(decimal.Zero) {
		return DeductResult{}, ErrInvalidArgument
	}

	if req.CallID != "" {
		if res, ok, err := s.replayResult(ctx, req); err != nil {
			return DeductResult{}, err
		} else if ok {
			return res, nil
		}
	}

	// Ensure the row exists before charging; first-touch accounts are
	// created blocked at zero balance and fail the charge below.
	if _, err := s.repo.GetOrCreate(ctx, req.UserID, req.CompanyID, s.defaults); err != nil {
		return DeductResult{}, err
	}

	txn := CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Amount:      req.Cost.Neg(),
		Type:        TransactionTypeCallCharge,
		Description: req.Description,
		CallID:      req.CallID,
		CreatedAt:   s.clock().UTC(),
	}
	if txn.Description == "" {
		txn.Description = "call charge"
	}

	account, err := s.repo.ApplyCharge(ctx, txn)
	if errors.Is(err, ErrDuplicateCall) {
		// Lost the race to a concurrent copy of the same webhook; return
		// that copy's outcome.
		res, ok, rerr := s.replayResult(ctx, req)
		if rerr != nil {
			return DeductResult{}, rerr
		}
		if !ok {
			return DeductResult{}, err
		}
		return res, nil
	}
	if err != nil {
		return DeductResult{}, err
	}

	s.afterBalanceWrite(ctx, account)

	return DeductResult{
		RemainingBalance: account.CurrentBalance,
		Blocked:          account.IsBlocked,
		Alert:            EvaluateAlert(account),
		TransactionID:    txn.ID,
	}, nil
}

// replayResult reproduces the outcome of an already-recorded charge for
// req.CallID. ok is false when no such charge exists.
func (s *Service) replayResult(ctx context.Context, req DeductRequest) (DeductResult, bool, error) {
	prior, ok, err := s.repo.FindByCallID(ctx, req.CallID)
	if err != nil || !ok {
		return DeductResult{}, false, err
	}
	account, err := s.repo.Get(ctx, req.UserID)
	if err != nil {
		return DeductResult{}, false, err
	}
	return DeductResult{
		RemainingBalance: prior.BalanceAfter,
		Blocked:          account.IsBlocked,
		Alert:            EvaluateAlert(account),
		TransactionID:    prior.ID,
	}, true, nil
}

type AdjustRequest struct {
	UserID string

	// Amount is signed: deposits positive, deductions negative.
	Amount decimal.Decimal
	Type   TransactionType

	Description string

	// ActorUserID/ActorRole identify the admin for the audit trail.
	ActorUserID string
	ActorRole   string
}

// AdjustBalance applies an admin-initiated balance mutation.
// RBAC (owner/admin) is enforced at the route layer; this method still
// refuses anonymous actors so the server-side check cannot be bypassed.
func (s *Service) AdjustBalance(ctx context.Context, req AdjustRequest) (UserCredits, error) {
	if req.UserID == "" || req.ActorUserID == "" || req.ActorRole == "" {
		return UserCredits{}, ErrInvalidArgument
	}
	if req.Amount.IsZero() {
		return UserCredits{}, ErrInvalidArgument
	}
	switch req.Type {
	case TransactionTypeDeposit:
		if req.Amount.IsNegative() {
			return UserCredits{}, ErrInvalidArgument
		}
	case TransactionTypeDeduction:
		if req.Amount.IsPositive() {
			return UserCredits{}, ErrInvalidArgument
		}
	case TransactionTypeAdjustment:
		// any sign
	default:
		return UserCredits{}, ErrInvalidArgument
	}

	txn := CreditTransaction{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		CreatedAt:   s.clock().UTC(),
	}

	account, err := s.repo.ApplyAdjustment(ctx, txn)
	if err != nil {
		return UserCredits{}, err
	}

	s.afterBalanceWrite(ctx, account)
	return account, nil
}

// GetBalanceSummary returns the merged balance view. Served from cache
// within the staleness window; the underlying reads get one bounded retry.
func (s *Service) GetBalanceSummary(ctx context.Context, userID, companyID string) (BalanceSummary, error) {
	if userID == "" {
		return BalanceSummary{}, ErrInvalidArgument
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, userID); ok {
			return cached, nil
		}
	}

	var account UserCredits
	var txns []CreditTransaction

	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		account, err = s.repo.GetOrCreate(ctx, userID, companyID, s.defaults)
		if err != nil {
			return err
		}
		txns, err = s.repo.ListTransactions(ctx, userID, s.recentTxnLimit)
		return err
	})
	if err != nil {
		return BalanceSummary{}, err
	}

	summary := BalanceSummary{
		UserID:             account.UserID,
		CompanyID:          account.CompanyID,
		CurrentBalance:     account.CurrentBalance,
		WarningThreshold:   account.WarningThreshold,
		CriticalThreshold:  account.CriticalThreshold,
		IsBlocked:          account.IsBlocked,
		IsLowBalance:       account.CurrentBalance.LessThan(account.WarningThreshold),
		RemainingMinutes:   remainingMinutes(account.CurrentBalance, s.assumedRate),
		RecentTransactions: txns,
		UpdatedAt:          account.UpdatedAt,
	}

	if s.cache != nil {
		s.cache.Set(ctx, userID, summary)
	}
	return summary, nil
}

// ListTransactions exposes the raw transaction history, newest first.
func (s *Service) ListTransactions(ctx context.Context, userID string, limit int) ([]CreditTransaction, error) {
	return s.repo.ListTransactions(ctx, userID, limit)
}

func remainingMinutes(balance, ratePerMinute decimal.Decimal) int64 {
	if balance.LessThanOrEqual(decimal.Zero) || ratePerMinute.LessThanOrEqual(decimal.Zero) {
		return 0
	}
	return balance.Div(ratePerMinute).Floor().IntPart()
}

// afterBalanceWrite fans out the side effects of a committed balance write:
// cache invalidation, change event, threshold alert. All best-effort.
func (s *Service) afterBalanceWrite(ctx context.Context, account UserCredits) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, account.UserID)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishBalanceChange(ctx, account.UserID); err != nil {
			s.log.Warn("balance change publish failed", "user_id", account.UserID, "err", err)
		}
	}
	if s.notifier != nil {
		if alert := EvaluateAlert(account); alert != AlertNone {
			s.notifier.NotifyBalanceAlert(ctx, account, alert)
		}
	}
}
