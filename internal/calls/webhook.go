package calls

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// retellCallPayload is the provider's call-completed webhook body, reduced to
// the fields ingestion uses. Timestamps and duration arrive in milliseconds.
type retellCallPayload struct {
	Event string `json:"event"`
	Call  struct {
		CallID         string `json:"call_id"`
		AgentID        string `json:"agent_id"`
		FromNumber     string `json:"from_number"`
		ToNumber       string `json:"to_number"`
		DurationMs     int64  `json:"duration_ms"`
		StartTimestamp int64  `json:"start_timestamp"`
		EndTimestamp   int64  `json:"end_timestamp"`
		CallStatus     string `json:"call_status"`
		RecordingURL   string `json:"recording_url"`
		TranscriptURL  string `json:"transcript_url"`
		CallAnalysis   struct {
			UserSentiment string `json:"user_sentiment"`
		} `json:"call_analysis"`
		CallCost struct {
			CombinedCost decimal.Decimal `json:"combined_cost"`
		} `json:"call_cost"`
	} `json:"call"`
}

// WebhookHandler receives provider call-completed webhooks.
type WebhookHandler struct {
	svc *Service
	log *slog.Logger
}

func NewWebhookHandler(svc *Service, log *slog.Logger) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{svc: svc, log: log}
}

// HandleCallCompleted ingests one completed call. Always answers 200 for
// calls we cannot attribute; a non-2xx would make the provider retry a
// webhook that will never succeed.
func (h *WebhookHandler) HandleCallCompleted(c *gin.Context) {
	var payload retellCallPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if payload.Call.CallID == "" || payload.Call.AgentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "call_id and agent_id are required"})
		return
	}

	in := CompletedCall{
		ExternalCallID:  payload.Call.CallID,
		RetellAgentID:   payload.Call.AgentID,
		FromNumber:      payload.Call.FromNumber,
		ToNumber:        payload.Call.ToNumber,
		DurationSeconds: int(payload.Call.DurationMs / 1000),
		Status:          mapCallStatus(payload.Call.CallStatus),
		Cost:            payload.Call.CallCost.CombinedCost,
		Sentiment:       payload.Call.CallAnalysis.UserSentiment,
		TranscriptURL:   payload.Call.TranscriptURL,
		RecordingURL:    payload.Call.RecordingURL,
		StartedAt:       time.UnixMilli(payload.Call.StartTimestamp).UTC(),
		EndedAt:         time.UnixMilli(payload.Call.EndTimestamp).UTC(),
	}

	call, err := h.svc.Ingest(c.Request.Context(), in)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok", "call_id": call.ID, "billing_status": call.BillingStatus})
	case errors.Is(err, ErrUnattributed):
		h.log.Warn("webhook for unassigned agent", "agent_id", payload.Call.AgentID, "call_id", payload.Call.CallID)
		c.JSON(http.StatusOK, gin.H{"status": "ignored", "reason": "agent has no primary assignment"})
	case errors.Is(err, ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
	default:
		h.log.Error("call ingestion failed", "call_id", payload.Call.CallID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func mapCallStatus(providerStatus string) CallStatus {
	switch providerStatus {
	case "error", "failed":
		return CallStatusFailed
	case "no_answer":
		return CallStatusNoAnswer
	default:
		return CallStatusCompleted
	}
}
