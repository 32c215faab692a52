package agents

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

type fakePublisher struct {
	userIDs []string
	err     error
}

func (f *fakePublisher) PublishAssignmentChange(ctx context.Context, userID string) error {
	f.userIDs = append(f.userIDs, userID)
	return f.err
}

func seedAgent(t *testing.T, repo *MemoryRepo, retellID, name string) Agent {
	t.Helper()
	res, err := repo.UpsertByRetellID(context.Background(), Agent{RetellAgentID: retellID, Name: name})
	if err != nil {
		t.Fatalf("seed agent %s: %v", retellID, err)
	}
	return res.Agent
}

func TestUpsertByRetellID_CreateThenRefresh(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	first, err := repo.UpsertByRetellID(ctx, Agent{RetellAgentID: "ra-1", Name: "Support Bot"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !first.Created {
		t.Fatal("expected first upsert to create")
	}

	second, err := repo.UpsertByRetellID(ctx, Agent{RetellAgentID: "ra-1", Name: "Support Bot v2", VoiceID: "nova"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if second.Created {
		t.Fatal("expected second upsert to update")
	}
	if second.Agent.ID != first.Agent.ID {
		t.Fatal("upsert must keep the internal id stable")
	}
	if second.Agent.Name != "Support Bot v2" || second.Agent.VoiceID != "nova" {
		t.Fatalf("expected refreshed fields, got %+v", second.Agent)
	}
}

func TestUpsertByRetellID_PreservesOperatorFields(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()

	first, err := repo.UpsertByRetellID(ctx, Agent{
		RetellAgentID: "ra-1",
		Name:          "Sales",
		CompanyID:     "co1",
		RatePerMinute: decimal.RequireFromString("0.25"),
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	// Sync payloads carry neither company nor rate.
	second, err := repo.UpsertByRetellID(ctx, Agent{RetellAgentID: "ra-1", Name: "Sales v2"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if second.Agent.CompanyID != first.Agent.CompanyID {
		t.Fatalf("company must survive sync, got %q", second.Agent.CompanyID)
	}
	if !second.Agent.RatePerMinute.Equal(decimal.RequireFromString("0.25")) {
		t.Fatalf("rate must survive sync, got %s", second.Agent.RatePerMinute)
	}
}

func TestDeactivateMissing_ReactivatedByUpsert(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	seedAgent(t, repo, "ra-1", "Keep")
	seedAgent(t, repo, "ra-2", "Drop")

	n, err := repo.DeactivateMissing(ctx, []string{"ra-1"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deactivated, got %d", n)
	}

	dropped, err := repo.GetByRetellID(ctx, "ra-2")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if dropped.Status != StatusInactive {
		t.Fatalf("expected ra-2 inactive, got %s", dropped.Status)
	}

	// The agent returning in a later sync reactivates the same row.
	res, err := repo.UpsertByRetellID(ctx, Agent{RetellAgentID: "ra-2", Name: "Drop"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Created || res.Agent.Status != StatusActive {
		t.Fatalf("expected reactivation of existing row, got %+v", res)
	}
}

func TestAssignPrimaryAgent_DemotesPreviousPrimary(t *testing.T) {
	repo := NewMemoryRepo()
	pub := &fakePublisher{}
	svc := NewService(repo, pub, nil)
	ctx := context.Background()

	a := seedAgent(t, repo, "ra-1", "First")
	b := seedAgent(t, repo, "ra-2", "Second")

	if _, err := svc.AssignPrimaryAgent(ctx, "u1", "co1", a.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if _, err := svc.AssignPrimaryAgent(ctx, "u1", "co1", b.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	assignments, err := svc.ListUserAssignments(ctx, "u1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	primaries := 0
	for _, s := range assignments {
		if s.IsPrimary {
			primaries++
			if s.AgentID != b.ID {
				t.Fatalf("expected %s primary, got %s", b.ID, s.AgentID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary, got %d", primaries)
	}
	if len(pub.userIDs) != 2 {
		t.Fatalf("expected 2 publishes, got %d", len(pub.userIDs))
	}
}

func TestAssignPrimaryAgent_RejectsInactive(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	a := seedAgent(t, repo, "ra-1", "Gone")
	if _, err := repo.DeactivateMissing(ctx, nil); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	if _, err := svc.AssignPrimaryAgent(ctx, "u1", "co1", a.ID); !errors.Is(err, ErrInactiveAgent) {
		t.Fatalf("expected ErrInactiveAgent, got %v", err)
	}
}

func TestResolveCallOwner(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	a := seedAgent(t, repo, "ra-1", "Owned")
	seedAgent(t, repo, "ra-2", "Orphan")

	if _, err := svc.AssignPrimaryAgent(ctx, "u1", "co1", a.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	owner, err := svc.ResolveCallOwner(ctx, "ra-1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if owner.UserID != "u1" || owner.CompanyID != "co1" {
		t.Fatalf("unexpected owner %+v", owner)
	}

	if _, err := svc.ResolveCallOwner(ctx, "ra-2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unassigned agent, got %v", err)
	}
}

func TestListUnassignedAgents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	a := seedAgent(t, repo, "ra-1", "Assigned")
	seedAgent(t, repo, "ra-2", "Bravo")
	seedAgent(t, repo, "ra-3", "Alpha")

	if _, err := svc.AssignPrimaryAgent(ctx, "u1", "co1", a.ID); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	unassigned, err := svc.ListUnassignedAgents(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(unassigned) != 2 {
		t.Fatalf("expected 2 unassigned, got %d", len(unassigned))
	}
	if unassigned[0].Name != "Alpha" || unassigned[1].Name != "Bravo" {
		t.Fatalf("expected name order, got %+v", unassigned)
	}
}
