package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"callcenter-platform/internal/agents"
	"callcenter-platform/internal/alerts"
	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/config"
	"callcenter-platform/internal/credits"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// identityMW injects a fixed identity the way auth.RequireAccessToken would.
func identityMW(userID, companyID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, companyID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func newCreditsService(t *testing.T, repo *credits.MemoryRepo) *credits.Service {
	t.Helper()
	return credits.NewService(repo, nil, nil, nil, nil, credits.ServiceOptions{})
}

func TestGetBalance_ReturnsCallerSummary(t *testing.T) {
	repo := credits.NewMemoryRepo()
	repo.Seed(credits.UserCredits{
		UserID:            "u1",
		CompanyID:         "co1",
		CurrentBalance:    decimal.RequireFromString("25.00"),
		WarningThreshold:  decimal.NewFromInt(10),
		CriticalThreshold: decimal.NewFromInt(5),
	})
	h := Handlers{Credits: newCreditsService(t, repo)}

	r := gin.New()
	r.GET("/v1/credits/balance", identityMW("u1", "co1", rbac.RoleMember), h.GetBalance)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/credits/balance", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out credits.BalanceSummary
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.UserID != "u1" || !out.CurrentBalance.Equal(decimal.RequireFromString("25.00")) {
		t.Fatalf("unexpected summary %+v", out)
	}
}

func TestAdminAdjustBalance_AppliesAndValidates(t *testing.T) {
	repo := credits.NewMemoryRepo()
	repo.Seed(credits.UserCredits{
		UserID:         "u2",
		CompanyID:      "co1",
		CurrentBalance: decimal.NewFromInt(5),
	})
	// The alerts service is wired in so the deposit path also exercises the
	// cooldown release.
	h := Handlers{
		Credits: newCreditsService(t, repo),
		Alerts:  alerts.NewService(alerts.NewMemoryRepo(), nil, nil, nil, time.Hour),
	}

	r := gin.New()
	r.POST("/v1/admin/credits/adjust", identityMW("admin1", "co1", rbac.RoleAdmin), h.AdminAdjustBalance)

	body := `{"user_id":"u2","amount":"10.00","type":"deposit","description":"top up"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/admin/credits/adjust", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out credits.UserCredits
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.CurrentBalance.Equal(decimal.NewFromInt(15)) {
		t.Fatalf("expected balance 15, got %s", out.CurrentBalance)
	}

	// call_charge is reserved for the billing pipeline.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/admin/credits/adjust",
		strings.NewReader(`{"user_id":"u2","amount":"1.00","type":"call_charge"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for call_charge type, got %d", w.Code)
	}
}

func TestListCalls_ScopedToCaller(t *testing.T) {
	repo := calls.NewMemoryRepo()
	ctx := context.Background()
	now := time.Now().UTC()
	seed := []calls.Call{
		{ID: "c1", ExternalCallID: "ext-1", UserID: "u1", CompanyID: "co1", StartedAt: now.Add(-time.Hour)},
		{ID: "c2", ExternalCallID: "ext-2", UserID: "u1", CompanyID: "co1", StartedAt: now},
		{ID: "c3", ExternalCallID: "ext-3", UserID: "u2", CompanyID: "co1", StartedAt: now},
	}
	for _, c := range seed {
		if _, err := repo.Insert(ctx, c); err != nil {
			t.Fatalf("insert %s: %v", c.ID, err)
		}
	}
	h := Handlers{Calls: calls.NewService(repo, nil, nil, nil, decimal.Zero)}

	r := gin.New()
	r.GET("/v1/calls", identityMW("u1", "co1", rbac.RoleMember), h.ListCalls)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/calls", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Calls []calls.Call `json:"calls"`
		Count int          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 2 {
		t.Fatalf("expected the caller's 2 calls, got %d", out.Count)
	}
	// Newest first.
	if out.Calls[0].ID != "c2" || out.Calls[1].ID != "c1" {
		t.Fatalf("unexpected order %+v", out.Calls)
	}
}

func TestListAgents_ActiveRosterOnly(t *testing.T) {
	repo := agents.NewMemoryRepo()
	ctx := context.Background()
	if _, err := repo.UpsertByRetellID(ctx, agents.Agent{RetellAgentID: "ra-1", Name: "Sales"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.UpsertByRetellID(ctx, agents.Agent{RetellAgentID: "ra-2", Name: "Support"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.DeactivateMissing(ctx, []string{"ra-1"}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	h := Handlers{Agents: agents.NewService(repo, nil, nil)}

	r := gin.New()
	r.GET("/v1/agents", identityMW("u1", "co1", rbac.RoleMember), h.ListAgents)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/agents", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var out struct {
		Agents []agents.Agent `json:"agents"`
		Count  int            `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Count != 1 || out.Agents[0].RetellAgentID != "ra-1" {
		t.Fatalf("expected only the active agent, got %+v", out)
	}
}

func TestAssignPrimaryAgent_InactiveConflict(t *testing.T) {
	repo := agents.NewMemoryRepo()
	ctx := context.Background()
	res, err := repo.UpsertByRetellID(ctx, agents.Agent{RetellAgentID: "ra-1", Name: "Sales"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.UpsertByRetellID(ctx, agents.Agent{RetellAgentID: "ra-2", Name: "Support"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, err := repo.DeactivateMissing(ctx, []string{"ra-2"}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	h := Handlers{Agents: agents.NewService(repo, nil, nil)}

	r := gin.New()
	r.POST("/v1/agents/assignments/primary", identityMW("admin1", "co1", rbac.RoleAdmin), h.AssignPrimaryAgent)

	body := `{"user_id":"u1","agent_id":"` + res.Agent.ID + `"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/agents/assignments/primary", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 for inactive agent, got %d: %s", w.Code, w.Body.String())
	}
}

func TestLoginAndRefresh(t *testing.T) {
	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	repo := users.NewMemoryRepo()
	hash, err := users.HashPassword("hunter22")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	repo.Seed(users.User{
		ID:           "u1",
		CompanyID:    "co1",
		Email:        "ops@example.com",
		Role:         rbac.RoleAdmin,
		PasswordHash: hash,
		IsActive:     true,
	})
	h := Handlers{Auth: mgr, Users: users.NewService(repo, nil)}

	r := gin.New()
	r.POST("/v1/auth/login", h.Login)
	r.POST("/v1/auth/refresh", h.Refresh)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"ops@example.com","password":"hunter22"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var loginOut struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginOut); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if loginOut.AccessToken == "" || loginOut.RefreshToken == "" {
		t.Fatal("expected token pair")
	}

	claims, err := mgr.Verify(loginOut.AccessToken, auth.TokenTypeAccess, time.Now())
	if err != nil {
		t.Fatalf("verify access token: %v", err)
	}
	if claims.UserID != "u1" || claims.CompanyID != "co1" || claims.Role != rbac.RoleAdmin {
		t.Fatalf("unexpected claims %+v", claims)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+loginOut.RefreshToken+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on refresh, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/v1/auth/login",
		strings.NewReader(`{"email":"ops@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", w.Code)
	}
}
