package agents

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no agent or assignment matches.
	ErrNotFound = errors.New("agents: not found")

	// ErrInactiveAgent is returned when assigning a user to a deactivated agent.
	ErrInactiveAgent = errors.New("agents: agent is inactive")

	// ErrInvalidArgument is returned on missing identifiers.
	ErrInvalidArgument = errors.New("agents: invalid argument")
)

// Repository persists agents and user assignments.
type Repository interface {
	// UpsertByRetellID inserts the agent or refreshes name/voice/language on
	// the existing row keyed by retell_agent_id. Inactive agents reactivate;
	// maintenance survives.
	UpsertByRetellID(ctx context.Context, a Agent) (UpsertResult, error)

	// DeactivateMissing marks every active agent whose retell_agent_id is not
	// in keep as inactive. Returns the number of rows deactivated.
	DeactivateMissing(ctx context.Context, keep []string) (int, error)

	// ListActive returns all active agents ordered by name.
	ListActive(ctx context.Context) ([]Agent, error)

	// ListUnassigned returns active agents with no assignment at all.
	ListUnassigned(ctx context.Context) ([]Agent, error)

	// GetByRetellID returns the agent mirrored from the given provider id
	// regardless of status.
	GetByRetellID(ctx context.Context, retellAgentID string) (Agent, error)

	// SetPrimary makes agentID the user's primary agent. Any previous primary
	// assignment for the user is demoted in the same transaction.
	SetPrimary(ctx context.Context, userID, companyID, agentID string) (Assignment, error)

	// ListAssignments returns the user's assignments, primary first.
	ListAssignments(ctx context.Context, userID string) ([]Assignment, error)

	// ResolvePrimaryUser returns the primary assignment for the agent mirrored
	// from retellAgentID. Used by call ingestion to attribute inbound calls.
	ResolvePrimaryUser(ctx context.Context, retellAgentID string) (Assignment, error)
}
