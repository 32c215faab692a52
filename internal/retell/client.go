// Package retell is the HTTP adapter for the Retell voice-agent API.
// No Retell calls happen outside this package; business logic sees the
// Provider interface only.
package retell

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider lists the voice agents configured at the provider.
type Provider interface {
	ListAgents(ctx context.Context) ([]ProviderAgent, error)
}

// ProviderAgent is Retell's agent representation, reduced to the fields the
// sync pipeline mirrors.
type ProviderAgent struct {
	AgentID   string `json:"agent_id"`
	AgentName string `json:"agent_name"`
	VoiceID   string `json:"voice_id"`
	Language  string `json:"language"`
}

var ErrUnauthorized = errors.New("retell: unauthorized")

// Client talks to the Retell REST API with bearer authentication.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) ListAgents(ctx context.Context) ([]ProviderAgent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/list-agents", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("retell: list agents: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		// Read a bounded slice of the body for the error message.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("retell: list agents: status %d: %s", resp.StatusCode, body)
	}

	var agents []ProviderAgent
	if err := json.NewDecoder(resp.Body).Decode(&agents); err != nil {
		return nil, fmt.Errorf("retell: decode agents: %w", err)
	}
	return agents, nil
}
