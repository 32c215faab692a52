package agentsync

import (
	"context"
	"errors"
	"strings"
	"testing"

	"callcenter-platform/internal/agents"
	"callcenter-platform/internal/retell"
)

type fakeProvider struct {
	agents []retell.ProviderAgent
	err    error
}

func (f *fakeProvider) ListAgents(ctx context.Context) ([]retell.ProviderAgent, error) {
	return f.agents, f.err
}

type fakeAgentsPublisher struct{ calls int }

func (f *fakeAgentsPublisher) PublishAgentsChange(ctx context.Context) error {
	f.calls++
	return nil
}

func TestSyncNow_ReconcilesAndCompletes(t *testing.T) {
	ctx := context.Background()
	agentRepo := agents.NewMemoryRepo()

	// ra-old exists locally and is gone at the provider.
	if _, err := agentRepo.UpsertByRetellID(ctx, agents.Agent{RetellAgentID: "ra-old", Name: "Old"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// ra-known exists both sides; the provider has a newer name.
	if _, err := agentRepo.UpsertByRetellID(ctx, agents.Agent{RetellAgentID: "ra-known", Name: "Known"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	provider := &fakeProvider{agents: []retell.ProviderAgent{
		{AgentID: "ra-known", AgentName: "Known v2"},
		{AgentID: "ra-new", AgentName: "New"},
	}}
	pub := &fakeAgentsPublisher{}
	svc := NewService(NewMemoryRepo(), agentRepo, provider, pub, nil)

	run, err := svc.SyncNow(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if run.Status != RunStatusCompleted {
		t.Fatalf("expected completed, got %s", run.Status)
	}
	if run.AgentsCreated != 1 || run.AgentsUpdated != 1 || run.AgentsDeactivated != 1 {
		t.Fatalf("unexpected counts %+v", run)
	}
	if run.CompletedAt == nil {
		t.Fatal("expected completed_at set")
	}
	if pub.calls != 1 {
		t.Fatalf("expected 1 publish, got %d", pub.calls)
	}

	known, err := agentRepo.GetByRetellID(ctx, "ra-known")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if known.Name != "Known v2" {
		t.Fatalf("expected refreshed name, got %q", known.Name)
	}
	old, err := agentRepo.GetByRetellID(ctx, "ra-old")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if old.Status != agents.StatusInactive {
		t.Fatalf("expected ra-old deactivated, got %s", old.Status)
	}
}

func TestSyncNow_ProviderFailureRecordedOnRun(t *testing.T) {
	ctx := context.Background()
	runs := NewMemoryRepo()
	provider := &fakeProvider{err: errors.New("upstream timeout")}
	svc := NewService(runs, agents.NewMemoryRepo(), provider, nil, nil)

	run, err := svc.SyncNow(ctx, TriggerScheduled)
	if err == nil {
		t.Fatal("expected error")
	}
	if run.Status != RunStatusFailed {
		t.Fatalf("expected failed, got %s", run.Status)
	}
	if !strings.Contains(run.Error, "upstream timeout") {
		t.Fatalf("expected failure reason recorded, got %q", run.Error)
	}
	if run.CompletedAt == nil {
		t.Fatal("failed runs are terminal; completed_at must be set")
	}

	history, err := svc.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(history) != 1 || history[0].Status != RunStatusFailed {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestSyncNow_EmptyListingDoesNotMassDeactivate(t *testing.T) {
	ctx := context.Background()
	agentRepo := agents.NewMemoryRepo()
	if _, err := agentRepo.UpsertByRetellID(ctx, agents.Agent{RetellAgentID: "ra-1", Name: "Keep"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	svc := NewService(NewMemoryRepo(), agentRepo, &fakeProvider{}, nil, nil)
	run, err := svc.SyncNow(ctx, TriggerScheduled)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if run.AgentsDeactivated != 0 {
		t.Fatalf("expected no deactivations, got %d", run.AgentsDeactivated)
	}

	kept, err := agentRepo.GetByRetellID(ctx, "ra-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if kept.Status != agents.StatusActive {
		t.Fatalf("expected ra-1 still active, got %s", kept.Status)
	}
}

func TestRunTransitions_TerminalStatesAreFinal(t *testing.T) {
	ctx := context.Background()
	runs := NewMemoryRepo()

	run, err := runs.Begin(ctx, TriggerManual)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := runs.Complete(ctx, run.ID, 1, 2, 3); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := runs.Fail(ctx, run.ID, "late failure"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected terminal run to reject transition, got %v", err)
	}
	if _, err := runs.Complete(ctx, run.ID, 9, 9, 9); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected terminal run to reject transition, got %v", err)
	}
}
