package team

import (
	"errors"
	"log/slog"
	"net/http"

	"callcenter-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// Handler exposes the invitation endpoints.
type Handler struct {
	svc *Service
	log *slog.Logger
}

func NewHandler(svc *Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, log: log}
}

type inviteBody struct {
	TeamID string `json:"team_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// Invite handles POST /api/team/invite.
func (h *Handler) Invite(c *gin.Context) {
	var body inviteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor, _ := auth.UserID(c.Request.Context())
	res, err := h.svc.Invite(c.Request.Context(), InviteRequest{
		TeamID:      body.TeamID,
		Email:       body.Email,
		Role:        body.Role,
		ActorUserID: actor,
	})
	switch {
	case err == nil:
		resp := gin.H{"ok": true, "link": res.Link}
		if res.Warn != "" {
			resp["warn"] = res.Warn
		}
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, ErrSeatLimitReached):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Seat limit reached"})
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrTeamNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("invite failed", "team_id", body.TeamID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

type acceptBody struct {
	Token string `json:"token"`
}

// Accept handles POST /api/team/invite/accept.
func (h *Handler) Accept(c *gin.Context) {
	var body acceptBody
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	inv, err := h.svc.Accept(c.Request.Context(), body.Token)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"ok": true, "team_id": inv.TeamID, "role": inv.Role})
	case errors.Is(err, ErrInviteNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "invitation not found"})
	case errors.Is(err, ErrInviteExpired):
		c.JSON(http.StatusGone, gin.H{"error": "invitation expired"})
	case errors.Is(err, ErrInviteConsumed):
		c.JSON(http.StatusConflict, gin.H{"error": "invitation already accepted"})
	case errors.Is(err, ErrSeatLimitReached):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Seat limit reached"})
	default:
		h.log.Error("invite accept failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
