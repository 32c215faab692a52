package reporting

import (
	"context"
	"errors"
	"time"

	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/credits"
	"callcenter-platform/pkg/utils"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce company filtering.
// - Implementations should query immutable sources (credit transactions, call records).

type Repository interface {
	ListCalls(ctx context.Context, companyID string, from, to time.Time, userID string) ([]calls.Call, error)
	ListTransactions(ctx context.Context, companyID string, from, to time.Time, userID string) ([]credits.CreditTransaction, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) CallsSummary(ctx context.Context, req CallsSummaryRequest) (CallsSummary, error) {
	if err := validateRange(req.CompanyID, req.Range); err != nil {
		return CallsSummary{}, err
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	var rows []calls.Call
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		rows, err = s.repo.ListCalls(ctx, req.CompanyID, req.Range.From, req.Range.To, req.UserID)
		return err
	})
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{
		CompanyID:          req.CompanyID,
		UserID:             req.UserID,
		SentimentBreakdown: make(map[string]int),
	}
	for _, c := range rows {
		out.TotalCalls++
		out.TotalDurationSeconds += c.DurationSeconds
		out.TotalCost = out.TotalCost.Add(c.Cost)
		if c.RecordingURL != "" {
			out.RecordedCalls++
		}
		if c.Sentiment != "" {
			out.SentimentBreakdown[c.Sentiment]++
		}
		switch c.Status {
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusNoAnswer:
			out.NoAnswerCalls++
		}
		switch c.BillingStatus {
		case calls.BillingStatusBilled:
			out.BilledCalls++
		case calls.BillingStatusUnbilled:
			out.UnbilledCalls++
		}
	}
	if out.TotalCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.TotalCalls
	}
	return out, nil
}

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if err := validateRange(req.CompanyID, req.Range); err != nil {
		return SpendSummary{}, err
	}
	if s.repo == nil {
		return SpendSummary{}, errors.New("reporting: repository not configured")
	}

	var txns []credits.CreditTransaction
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		txns, err = s.repo.ListTransactions(ctx, req.CompanyID, req.Range.From, req.Range.To, req.UserID)
		return err
	})
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{CompanyID: req.CompanyID, UserID: req.UserID}
	for _, t := range txns {
		out.TransactionCount++
		out.NetDelta = out.NetDelta.Add(t.Amount)

		if t.Amount.IsPositive() {
			out.TotalDeposits = out.TotalDeposits.Add(t.Amount)
		} else {
			out.TotalCharges = out.TotalCharges.Add(t.Amount.Neg())
		}

		switch t.Type {
		case credits.TransactionTypeCallCharge:
			out.CallCharges = out.CallCharges.Add(t.Amount.Neg())
		case credits.TransactionTypeAdjustment, credits.TransactionTypeDeposit, credits.TransactionTypeDeduction:
			out.AdminAdjustments = out.AdminAdjustments.Add(t.Amount)
		}
	}
	return out, nil
}

func validateRange(companyID string, r TimeRange) error {
	if companyID == "" {
		return ErrInvalidRequest
	}
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return ErrInvalidRequest
	}
	return nil
}
