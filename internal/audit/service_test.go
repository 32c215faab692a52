package audit

import (
	"context"
	"testing"
)

func TestService_AppendRequiresCompanyAndType(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventTypeBalanceAdjustment}); err == nil {
		t.Fatalf("expected error")
	}
	if err := svc.Append(context.Background(), Event{CompanyID: "co"}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.LogBalanceAdjustment(context.Background(), "co", "admin-1", "admin", "1.2.3.4", "u1", "deposit 25.00", "{}"); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event")
	}
	if evs[0].IPAddress != "1.2.3.4" {
		t.Fatalf("expected ip captured")
	}
	if evs[0].Type != EventTypeBalanceAdjustment {
		t.Fatalf("expected balance_adjustment")
	}
	if evs[0].TargetUserID != "u1" {
		t.Fatalf("expected target user captured")
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned")
	}
}
