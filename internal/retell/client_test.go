package retell

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListAgents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/list-agents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer key-123" {
			t.Errorf("unexpected auth header %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"agent_id":"ra-1","agent_name":"Support","voice_id":"nova","language":"en-US"},
			{"agent_id":"ra-2","agent_name":"Sales"}
		]`))
	}))
	defer srv.Close()

	c := NewClient("key-123", srv.URL, time.Second)
	agents, err := c.ListAgents(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	if agents[0].AgentID != "ra-1" || agents[0].VoiceID != "nova" {
		t.Fatalf("unexpected agent %+v", agents[0])
	}
}

func TestListAgents_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient("bad-key", srv.URL, time.Second)
	if _, err := c.ListAgents(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestListAgents_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, time.Second)
	if _, err := c.ListAgents(context.Background()); err == nil {
		t.Fatal("expected error on 502")
	}
}
