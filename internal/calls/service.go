package calls

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"callcenter-platform/internal/agents"
	"callcenter-platform/internal/credits"
	"callcenter-platform/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrUnattributed means the provider agent has no primary user assignment,
// so nobody can be billed for the call.
var ErrUnattributed = errors.New("calls: no primary assignment for agent")

// OwnerResolver maps a provider agent id to the billed user and exposes the
// agent's configured per-minute rate for local cost estimation.
type OwnerResolver interface {
	ResolveCallOwner(ctx context.Context, retellAgentID string) (agents.Assignment, error)
	AgentRate(ctx context.Context, retellAgentID string) (decimal.Decimal, error)
}

// Charger deducts call cost from the resolved user's balance.
type Charger interface {
	DeductCredits(ctx context.Context, req credits.DeductRequest) (credits.DeductResult, error)
}

// CompletedCall is the normalized provider payload for one finished call.
type CompletedCall struct {
	ExternalCallID string
	RetellAgentID  string

	FromNumber string
	ToNumber   string

	DurationSeconds int
	Status          CallStatus

	// Cost is the provider-reported cost; zero means estimate locally.
	Cost decimal.Decimal

	Sentiment     string
	TranscriptURL string
	RecordingURL  string

	StartedAt time.Time
	EndedAt   time.Time
}

// Service ingests completed calls and charges them.
type Service struct {
	repo    Repository
	owners  OwnerResolver
	charger Charger
	log     *slog.Logger

	// ratePerMinute prices calls when the provider reports no cost.
	ratePerMinute decimal.Decimal

	clock func() time.Time
}

func NewService(repo Repository, owners OwnerResolver, charger Charger, log *slog.Logger, ratePerMinute decimal.Decimal) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:          repo,
		owners:        owners,
		charger:       charger,
		log:           log,
		ratePerMinute: ratePerMinute,
		clock:         time.Now,
	}
}

// Ingest records a completed call and deducts its cost.
//
// Idempotent on ExternalCallID: a replayed webhook returns the stored call
// unchanged. A failed deduction stores the call as unbilled instead of
// failing ingestion; the provider must not keep retrying a call we already
// recorded.
func (s *Service) Ingest(ctx context.Context, in CompletedCall) (Call, error) {
	if in.ExternalCallID == "" || in.RetellAgentID == "" || in.DurationSeconds < 0 {
		return Call{}, ErrInvalidArgument
	}

	if existing, ok, err := s.repo.FindByExternalID(ctx, in.ExternalCallID); err != nil {
		return Call{}, err
	} else if ok {
		s.log.Info("webhook replay ignored", "external_call_id", in.ExternalCallID)
		return existing, nil
	}

	owner, err := s.owners.ResolveCallOwner(ctx, in.RetellAgentID)
	if err != nil {
		if errors.Is(err, agents.ErrNotFound) {
			return Call{}, ErrUnattributed
		}
		return Call{}, err
	}

	// Provider-reported cost wins; otherwise price by the agent's configured
	// rate, falling back to the platform-wide assumed rate.
	cost := in.Cost
	if cost.LessThanOrEqual(decimal.Zero) {
		rate := s.ratePerMinute
		if agentRate, err := s.owners.AgentRate(ctx, in.RetellAgentID); err == nil && agentRate.GreaterThan(decimal.Zero) {
			rate = agentRate
		}
		cost = credits.EstimateCallCost(in.DurationSeconds, rate)
	}

	status := in.Status
	if status == "" {
		status = CallStatusCompleted
	}

	call := Call{
		ID:              uuid.NewString(),
		ExternalCallID:  in.ExternalCallID,
		UserID:          owner.UserID,
		CompanyID:       owner.CompanyID,
		AgentID:         owner.AgentID,
		FromNumber:      in.FromNumber,
		ToNumber:        in.ToNumber,
		DurationSeconds: in.DurationSeconds,
		Cost:            cost,
		Status:          status,
		BillingStatus:   BillingStatusUnbilled,
		Sentiment:       in.Sentiment,
		TranscriptURL:   in.TranscriptURL,
		RecordingURL:    in.RecordingURL,
		StartedAt:       in.StartedAt,
		EndedAt:         in.EndedAt,
		CreatedAt:       s.clock().UTC(),
	}

	if cost.GreaterThan(decimal.Zero) {
		_, err := s.charger.DeductCredits(ctx, credits.DeductRequest{
			UserID:          owner.UserID,
			CompanyID:       owner.CompanyID,
			CallID:          in.ExternalCallID,
			Cost:            cost,
			DurationSeconds: in.DurationSeconds,
			Description:     "call charge " + in.ExternalCallID,
		})
		switch {
		case err == nil:
			call.BillingStatus = BillingStatusBilled
		case errors.Is(err, credits.ErrInsufficientBalance), errors.Is(err, credits.ErrAccountBlocked):
			s.log.Warn("call stored unbilled", "external_call_id", in.ExternalCallID, "user_id", owner.UserID, "err", err)
		default:
			s.log.Error("call charge failed, stored unbilled", "external_call_id", in.ExternalCallID, "err", err)
		}
	} else {
		// Zero-cost calls have nothing to collect.
		call.BillingStatus = BillingStatusBilled
	}

	stored, err := s.repo.Insert(ctx, call)
	if err != nil {
		return Call{}, err
	}
	s.log.Info("call ingested",
		"external_call_id", stored.ExternalCallID,
		"user_id", stored.UserID,
		"cost", stored.Cost.String(),
		"billing_status", stored.BillingStatus)
	return stored, nil
}

// ListUserCalls returns the user's call history, newest first.
func (s *Service) ListUserCalls(ctx context.Context, userID string, limit int) ([]Call, error) {
	var out []Call
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ListByUser(ctx, userID, limit)
		return err
	})
	return out, err
}
