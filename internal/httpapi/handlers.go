package httpapi

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"callcenter-platform/internal/agents"
	"callcenter-platform/internal/agentsync"
	"callcenter-platform/internal/alerts"
	"callcenter-platform/internal/audit"
	"callcenter-platform/internal/auth"
	"callcenter-platform/internal/calls"
	"callcenter-platform/internal/credits"
	"callcenter-platform/internal/rbac"
	"callcenter-platform/internal/reporting"
	"callcenter-platform/internal/users"
	"callcenter-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Users   *users.Service
	Credits *credits.Service
	Calls   *calls.Service
	Alerts  *alerts.Service
	Agents  *agents.Service
	Sync    *agentsync.Service
	Reports *reporting.Service
	Audit   *audit.Service

	DB  *sql.DB
	Log *slog.Logger
}

func (h Handlers) logger() *slog.Logger {
	if h.Log != nil {
		return h.Log
	}
	return slog.Default()
}

// --- Health ---

func (h Handlers) Healthz(c *gin.Context) {
	if h.DB != nil {
		if err := utils.HealthCheck(c.Request.Context(), h.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "database unreachable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Email == "" || req.Password == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "email and password required"})
		return
	}

	u, err := h.Users.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// Deactivated accounts get the same answer as bad credentials.
		if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrInactive) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		h.logger().Error("login failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.CompanyID, u.Role)
	if err != nil {
		h.logger().Error("token issuance failed", "user_id", u.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          u,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh exchanges a refresh token for a new pair. The role is re-read
// from storage so demotions take effect on the next refresh.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	claims, err := h.Auth.Verify(req.RefreshToken, auth.TokenTypeRefresh, time.Now())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	u, err := h.Users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil || !u.IsActive {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	pair, err := h.Auth.IssuePair(time.Now(), u.ID, u.CompanyID, u.Role)
	if err != nil {
		h.logger().Error("token issuance failed", "user_id", u.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

// --- Credits ---

func (h Handlers) GetBalance(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}
	companyID, _ := auth.CompanyID(c.Request.Context())

	summary, err := h.Credits.GetBalanceSummary(c.Request.Context(), userID, companyID)
	if err != nil {
		h.logger().Error("balance summary failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "balance lookup failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h Handlers) ListTransactions(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	limit := queryInt(c, "limit", 50)
	txns, err := h.Credits.ListTransactions(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger().Error("transaction list failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "transaction lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": txns, "count": len(txns)})
}

type adjustBalanceRequest struct {
	UserID string `json:"user_id"`

	// Amount is a signed decimal string: deposits positive, deductions negative.
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (h Handlers) AdminAdjustBalance(c *gin.Context) {
	var req adjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsZero() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "amount must be a non-zero decimal"})
		return
	}
	txType := credits.TransactionType(req.Type)
	switch txType {
	case credits.TransactionTypeDeposit, credits.TransactionTypeDeduction, credits.TransactionTypeAdjustment:
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "type must be deposit, deduction or adjustment"})
		return
	}

	actorID, _ := auth.UserID(c.Request.Context())
	actorRole, _ := auth.Role(c.Request.Context())
	companyID, _ := auth.CompanyID(c.Request.Context())

	account, err := h.Credits.AdjustBalance(c.Request.Context(), credits.AdjustRequest{
		UserID:      req.UserID,
		Amount:      amount,
		Type:        txType,
		Description: req.Description,
		ActorUserID: actorID,
		ActorRole:   actorRole,
	})
	if err != nil {
		switch {
		case errors.Is(err, credits.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user credits not found"})
		case errors.Is(err, credits.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger().Error("balance adjustment failed", "user_id", req.UserID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "adjustment failed"})
		}
		return
	}

	// A top-up resets the notification cooldown: if the balance drops low
	// again, the next alert goes out immediately.
	if h.Alerts != nil && amount.IsPositive() {
		if err := h.Alerts.ClearCooldown(c.Request.Context(), req.UserID); err != nil {
			h.logger().Warn("cooldown release failed", "user_id", req.UserID, "err", err)
		}
	}

	if h.Audit != nil {
		if err := h.Audit.LogBalanceAdjustment(c.Request.Context(), companyID, actorID, actorRole, c.ClientIP(), req.UserID, req.Description, "amount="+amount.String()); err != nil {
			h.logger().Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, account)
}

// --- Calls ---

// ListCalls returns the caller's own call history.
func (h Handlers) ListCalls(c *gin.Context) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "identity required"})
		return
	}

	limit := queryInt(c, "limit", 50)
	list, err := h.Calls.ListUserCalls(c.Request.Context(), userID, limit)
	if err != nil {
		h.logger().Error("call list failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "call lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": list, "count": len(list)})
}

// --- Alerts ---

func (h Handlers) ListLowBalance(c *gin.Context) {
	list, err := h.Alerts.CheckLowBalanceUsers(c.Request.Context())
	if err != nil {
		h.logger().Error("low balance check failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "low balance check failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": list, "count": len(list)})
}

func (h Handlers) NotifyLowBalance(c *gin.Context) {
	sent, err := h.Alerts.SendNotifications(c.Request.Context())
	if err != nil {
		h.logger().Error("low balance notify failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "notification dispatch failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notified": sent})
}

// --- Agents ---

func (h Handlers) TriggerAgentSync(c *gin.Context) {
	run, err := h.Sync.SyncNow(c.Request.Context(), agentsync.TriggerManual)
	if err != nil {
		// A failed run is still recorded; surface it alongside the error.
		h.logger().Warn("manual agent sync failed", "run_id", run.ID, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "agent sync failed", "run": run})
		return
	}

	if h.Audit != nil {
		companyID, _ := auth.CompanyID(c.Request.Context())
		actorID, _ := auth.UserID(c.Request.Context())
		if err := h.Audit.LogAgentSync(c.Request.Context(), companyID, actorID, run.ID, "manual sync", ""); err != nil {
			h.logger().Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, run)
}

func (h Handlers) ListSyncRuns(c *gin.Context) {
	limit := queryInt(c, "limit", 20)
	runs, err := h.Sync.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.logger().Error("sync run list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "sync run lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// ListAgents returns the active agent roster.
func (h Handlers) ListAgents(c *gin.Context) {
	list, err := h.Agents.ListActiveAgents(c.Request.Context())
	if err != nil {
		h.logger().Error("agent list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "agent lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": list, "count": len(list)})
}

func (h Handlers) ListUnassignedAgents(c *gin.Context) {
	list, err := h.Agents.ListUnassignedAgents(c.Request.Context())
	if err != nil {
		h.logger().Error("unassigned agent list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "agent lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": list, "count": len(list)})
}

type assignPrimaryRequest struct {
	UserID  string `json:"user_id"`
	AgentID string `json:"agent_id"`
}

func (h Handlers) AssignPrimaryAgent(c *gin.Context) {
	var req assignPrimaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.AgentID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id and agent_id required"})
		return
	}
	companyID, _ := auth.CompanyID(c.Request.Context())

	assignment, err := h.Agents.AssignPrimaryAgent(c.Request.Context(), req.UserID, companyID, req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, agents.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "agent not found"})
		case errors.Is(err, agents.ErrInactiveAgent):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "agent is not assignable"})
		case errors.Is(err, agents.ErrInvalidArgument):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			h.logger().Error("primary assignment failed", "user_id", req.UserID, "agent_id", req.AgentID, "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "assignment failed"})
		}
		return
	}
	c.JSON(http.StatusOK, assignment)
}

// --- Reports ---

func (h Handlers) CallsSummaryReport(c *gin.Context) {
	companyID, rng, userID, ok := h.reportScope(c)
	if !ok {
		return
	}
	out, err := h.Reports.CallsSummary(c.Request.Context(), reporting.CallsSummaryRequest{
		CompanyID: companyID,
		Range:     rng,
		UserID:    userID,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report range"})
			return
		}
		h.logger().Error("calls summary failed", "company_id", companyID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h Handlers) SpendSummaryReport(c *gin.Context) {
	companyID, rng, userID, ok := h.reportScope(c)
	if !ok {
		return
	}
	out, err := h.Reports.SpendSummary(c.Request.Context(), reporting.SpendSummaryRequest{
		CompanyID: companyID,
		Range:     rng,
		UserID:    userID,
	})
	if err != nil {
		if errors.Is(err, reporting.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid report range"})
			return
		}
		h.logger().Error("spend summary failed", "company_id", companyID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "report failed"})
		return
	}
	c.JSON(http.StatusOK, out)
}

// reportScope extracts company/time-range/user filters from the request.
// Members and viewers are always restricted to their own data; owners and
// admins may pass user_id to inspect another account in their company.
func (h Handlers) reportScope(c *gin.Context) (string, reporting.TimeRange, string, bool) {
	companyID, err := auth.CompanyID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "company scope required"})
		return "", reporting.TimeRange{}, "", false
	}

	now := time.Now().UTC()
	rng := reporting.TimeRange{From: now.AddDate(0, 0, -30), To: now}
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return "", reporting.TimeRange{}, "", false
		}
		rng.From = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return "", reporting.TimeRange{}, "", false
		}
		rng.To = t
	}

	userID := c.Query("user_id")
	role, _ := auth.Role(c.Request.Context())
	switch role {
	case rbac.RoleOwner, rbac.RoleAdmin, rbac.RoleSuperAdmin:
	default:
		self, _ := auth.UserID(c.Request.Context())
		userID = self
	}
	return companyID, rng, userID, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// Convenience middleware bundle for company-scoped admin routes.
func RequireCompanyAndAnyRole(roles ...string) []gin.HandlerFunc {
	return []gin.HandlerFunc{rbac.RequireCompany(), rbac.RequireAnyRole(roles...)}
}
