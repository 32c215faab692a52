package agentsync

import (
	"context"
	"log/slog"

	"callcenter-platform/internal/agents"
	"callcenter-platform/internal/retell"
	"callcenter-platform/pkg/utils"
)

// AgentsPublisher announces agent catalog changes on the realtime bus.
type AgentsPublisher interface {
	PublishAgentsChange(ctx context.Context) error
}

// Service reconciles the local agent mirror against the provider and records
// each pass as a SyncRun.
type Service struct {
	runs      Repository
	agents    agents.Repository
	provider  retell.Provider
	publisher AgentsPublisher
	log       *slog.Logger
}

func NewService(runs Repository, agentRepo agents.Repository, provider retell.Provider, publisher AgentsPublisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{runs: runs, agents: agentRepo, provider: provider, publisher: publisher, log: log}
}

// SyncNow runs one reconciliation pass. The returned run is terminal:
// completed with counts, or failed with the provider error recorded. The
// error return mirrors the run's failure so callers can branch on it.
func (s *Service) SyncNow(ctx context.Context, trigger Trigger) (SyncRun, error) {
	run, err := s.runs.Begin(ctx, trigger)
	if err != nil {
		return SyncRun{}, err
	}
	s.log.Info("agent sync started", "run_id", run.ID, "trigger", trigger)

	remote, err := s.provider.ListAgents(ctx)
	if err != nil {
		return s.fail(ctx, run.ID, err)
	}

	created, updated := 0, 0
	keep := make([]string, 0, len(remote))
	for _, ra := range remote {
		if ra.AgentID == "" {
			continue
		}
		res, err := s.agents.UpsertByRetellID(ctx, agents.Agent{
			RetellAgentID: ra.AgentID,
			Name:          ra.AgentName,
			VoiceID:       ra.VoiceID,
			Language:      ra.Language,
		})
		if err != nil {
			return s.fail(ctx, run.ID, err)
		}
		if res.Created {
			created++
		} else {
			updated++
		}
		keep = append(keep, ra.AgentID)
	}

	// An empty provider listing is indistinguishable from a provider-side
	// outage; never mass-deactivate on it.
	deactivated := 0
	if len(keep) > 0 {
		deactivated, err = s.agents.DeactivateMissing(ctx, keep)
		if err != nil {
			return s.fail(ctx, run.ID, err)
		}
	}

	run, err = s.runs.Complete(ctx, run.ID, created, updated, deactivated)
	if err != nil {
		return SyncRun{}, err
	}

	if s.publisher != nil && (created > 0 || updated > 0 || deactivated > 0) {
		if err := s.publisher.PublishAgentsChange(ctx); err != nil {
			s.log.Warn("agents change publish failed", "err", err)
		}
	}

	s.log.Info("agent sync completed",
		"run_id", run.ID, "created", created, "updated", updated, "deactivated", deactivated)
	return run, nil
}

func (s *Service) fail(ctx context.Context, runID string, cause error) (SyncRun, error) {
	run, err := s.runs.Fail(ctx, runID, cause.Error())
	if err != nil {
		s.log.Error("recording sync failure failed", "run_id", runID, "err", err)
		return SyncRun{}, err
	}
	s.log.Error("agent sync failed", "run_id", runID, "err", cause)
	return run, cause
}

// ListRuns returns recent sync history, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	var out []SyncRun
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		out, err = s.runs.ListRecent(ctx, limit)
		return err
	})
	return out, err
}
