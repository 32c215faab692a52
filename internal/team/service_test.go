package team

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

type fakeEnqueuer struct {
	ids []string
	err error
}

func (f *fakeEnqueuer) EnqueueInviteEmail(ctx context.Context, invitationID string) error {
	if f.err != nil {
		return f.err
	}
	f.ids = append(f.ids, invitationID)
	return nil
}

func seededService(enq InviteEnqueuer) (*Service, *MemoryRepo) {
	repo := NewMemoryRepo()
	repo.SeedTeam(Team{ID: "t1", CompanyID: "co1", Name: "Support", SeatLimit: 3, SeatsUsed: 1})
	repo.SeedTeam(Team{ID: "t-full", CompanyID: "co1", Name: "Full", SeatLimit: 2, SeatsUsed: 2})
	return NewService(repo, enq, nil, "https://app.example.com"), repo
}

func TestInvite_CreatesAndEnqueues(t *testing.T) {
	enq := &fakeEnqueuer{}
	svc, repo := seededService(enq)

	res, err := svc.Invite(context.Background(), InviteRequest{
		TeamID: "t1", Email: "New.Member@Example.com", Role: "member", ActorUserID: "admin-1",
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.Warn != "" {
		t.Fatalf("unexpected warn %q", res.Warn)
	}
	if !strings.HasPrefix(res.Link, "https://app.example.com/invite/") {
		t.Fatalf("unexpected link %q", res.Link)
	}
	if len(enq.ids) != 1 || enq.ids[0] != res.Invitation.ID {
		t.Fatalf("expected enqueue of %s, got %v", res.Invitation.ID, enq.ids)
	}

	stored, err := repo.GetInvitation(context.Background(), res.Invitation.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stored.Email != "new.member@example.com" {
		t.Fatalf("expected normalized email, got %q", stored.Email)
	}
	if stored.DeliveryStatus != DeliveryPending {
		t.Fatalf("expected pending delivery, got %s", stored.DeliveryStatus)
	}
	wantExpiry := stored.CreatedAt.Add(7 * 24 * time.Hour)
	if !stored.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expected 7 day expiry, got %s", stored.ExpiresAt)
	}
}

func TestInvite_Validation(t *testing.T) {
	svc, _ := seededService(&fakeEnqueuer{})
	ctx := context.Background()

	cases := []InviteRequest{
		{TeamID: "", Email: "a@b.com", Role: "member"},
		{TeamID: "t1", Email: "", Role: "member"},
		{TeamID: "t1", Email: "not-an-email", Role: "member"},
		{TeamID: "t1", Email: "a@b.com", Role: ""},
		{TeamID: "t1", Email: "a@b.com", Role: "demigod"},
		{TeamID: "t1", Email: "a@b.com", Role: "super_admin"},
	}
	for _, req := range cases {
		if _, err := svc.Invite(ctx, req); !errors.Is(err, ErrInvalidArgument) {
			t.Fatalf("request %+v: expected ErrInvalidArgument, got %v", req, err)
		}
	}

	if _, err := svc.Invite(ctx, InviteRequest{TeamID: "nope", Email: "a@b.com", Role: "member"}); !errors.Is(err, ErrTeamNotFound) {
		t.Fatalf("expected ErrTeamNotFound, got %v", err)
	}
}

func TestInvite_SeatLimit(t *testing.T) {
	svc, _ := seededService(&fakeEnqueuer{})
	_, err := svc.Invite(context.Background(), InviteRequest{TeamID: "t-full", Email: "a@b.com", Role: "member"})
	if !errors.Is(err, ErrSeatLimitReached) {
		t.Fatalf("expected ErrSeatLimitReached, got %v", err)
	}
}

func TestInvite_EnqueueFailureDegradesToWarn(t *testing.T) {
	enq := &fakeEnqueuer{err: errors.New("queue down")}
	svc, repo := seededService(enq)

	res, err := svc.Invite(context.Background(), InviteRequest{TeamID: "t1", Email: "a@b.com", Role: "viewer"})
	if err != nil {
		t.Fatalf("enqueue failure must not fail the invite: %v", err)
	}
	if res.Warn == "" {
		t.Fatal("expected warn on enqueue failure")
	}
	if res.Link == "" {
		t.Fatal("link must still be returned")
	}

	stored, err := repo.GetInvitation(context.Background(), res.Invitation.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if stored.DeliveryStatus != DeliveryFailed {
		t.Fatalf("expected failed delivery status, got %s", stored.DeliveryStatus)
	}
}

func TestAccept_ConsumesSeatOnce(t *testing.T) {
	svc, repo := seededService(&fakeEnqueuer{})
	ctx := context.Background()

	res, err := svc.Invite(ctx, InviteRequest{TeamID: "t1", Email: "a@b.com", Role: "member"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	inv, err := svc.Accept(ctx, res.Invitation.Token)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if inv.AcceptedAt == nil {
		t.Fatal("expected accepted_at set")
	}

	team, err := repo.GetTeam(ctx, "t1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if team.SeatsUsed != 2 {
		t.Fatalf("expected seat consumed, got %d", team.SeatsUsed)
	}

	if _, err := svc.Accept(ctx, res.Invitation.Token); !errors.Is(err, ErrInviteConsumed) {
		t.Fatalf("expected ErrInviteConsumed on reuse, got %v", err)
	}
	if team, _ := repo.GetTeam(ctx, "t1"); team.SeatsUsed != 2 {
		t.Fatalf("reused token must not consume another seat, got %d", team.SeatsUsed)
	}
}

func TestAccept_Expired(t *testing.T) {
	svc, _ := seededService(&fakeEnqueuer{})
	ctx := context.Background()

	res, err := svc.Invite(ctx, InviteRequest{TeamID: "t1", Email: "a@b.com", Role: "member"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	svc.clock = func() time.Time { return time.Now().Add(8 * 24 * time.Hour) }
	if _, err := svc.Accept(ctx, res.Invitation.Token); !errors.Is(err, ErrInviteExpired) {
		t.Fatalf("expected ErrInviteExpired, got %v", err)
	}
}

func inviteRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.POST("/api/team/invite", h.Invite)
	r.POST("/api/team/invite/accept", h.Accept)
	return r
}

func postJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInviteEndpoint_StatusMapping(t *testing.T) {
	svc, _ := seededService(&fakeEnqueuer{})
	r := inviteRouter(NewHandler(svc, nil))

	w := postJSON(t, r, http.MethodPost, "/api/team/invite", inviteBody{TeamID: "t1", Email: "a@b.com", Role: "member"})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["ok"] != true || resp["link"] == "" {
		t.Fatalf("unexpected body %v", resp)
	}

	w = postJSON(t, r, http.MethodPost, "/api/team/invite", inviteBody{TeamID: "t1", Email: "bad", Role: "member"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid email, got %d", w.Code)
	}

	w = postJSON(t, r, http.MethodPost, "/api/team/invite", inviteBody{TeamID: "t-full", Email: "a@b.com", Role: "member"})
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp["error"] != "Seat limit reached" {
		t.Fatalf("unexpected 402 body %v", resp)
	}

	w = postJSON(t, r, http.MethodGet, "/api/team/invite", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405 for GET, got %d", w.Code)
	}
}
