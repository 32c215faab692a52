package agents

import (
	"context"
	"log/slog"

	"callcenter-platform/pkg/utils"

	"github.com/shopspring/decimal"
)

// AssignmentPublisher announces assignment changes on the realtime bus.
type AssignmentPublisher interface {
	PublishAssignmentChange(ctx context.Context, userID string) error
}

// Service wraps the repository with retry on reads and realtime fan-out on
// assignment changes.
type Service struct {
	repo      Repository
	publisher AssignmentPublisher
	log       *slog.Logger
}

func NewService(repo Repository, publisher AssignmentPublisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, publisher: publisher, log: log}
}

func (s *Service) ListActiveAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ListActive(ctx)
		return err
	})
	return out, err
}

func (s *Service) ListUnassignedAgents(ctx context.Context) ([]Agent, error) {
	var out []Agent
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ListUnassigned(ctx)
		return err
	})
	return out, err
}

func (s *Service) ListUserAssignments(ctx context.Context, userID string) ([]Assignment, error) {
	var out []Assignment
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ListAssignments(ctx, userID)
		return err
	})
	return out, err
}

// AssignPrimaryAgent makes agentID the user's primary agent and announces the
// change. Publish failure is logged, not returned; the assignment is durable.
func (s *Service) AssignPrimaryAgent(ctx context.Context, userID, companyID, agentID string) (Assignment, error) {
	assignment, err := s.repo.SetPrimary(ctx, userID, companyID, agentID)
	if err != nil {
		return Assignment{}, err
	}

	if s.publisher != nil {
		if err := s.publisher.PublishAssignmentChange(ctx, userID); err != nil {
			s.log.Warn("assignment change publish failed", "user_id", userID, "err", err)
		}
	}
	s.log.Info("primary agent assigned", "user_id", userID, "agent_id", agentID)
	return assignment, nil
}

// AgentRate returns the agent's configured per-minute rate. Zero means the
// caller should apply its own default.
func (s *Service) AgentRate(ctx context.Context, retellAgentID string) (decimal.Decimal, error) {
	agent, err := s.repo.GetByRetellID(ctx, retellAgentID)
	if err != nil {
		return decimal.Zero, err
	}
	return agent.RatePerMinute, nil
}

// ResolveCallOwner maps a provider agent id to the user billed for its calls.
func (s *Service) ResolveCallOwner(ctx context.Context, retellAgentID string) (Assignment, error) {
	var out Assignment
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.repo.ResolvePrimaryUser(ctx, retellAgentID)
		return err
	})
	return out, err
}
