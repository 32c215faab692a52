package team

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repository for tests.
type MemoryRepo struct {
	mu      sync.Mutex
	teams   map[string]*Team
	invites map[string]*Invitation
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		teams:   make(map[string]*Team),
		invites: make(map[string]*Invitation),
	}
}

// SeedTeam installs a team directly.
func (r *MemoryRepo) SeedTeam(t Team) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := t
	r.teams[t.ID] = &stored
}

func (r *MemoryRepo) GetTeam(ctx context.Context, teamID string) (Team, error) {
	if teamID == "" {
		return Team{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.teams[teamID]; ok {
		return *t, nil
	}
	return Team{}, ErrTeamNotFound
}

func (r *MemoryRepo) CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := inv
	r.invites[inv.ID] = &stored
	return stored, nil
}

func (r *MemoryRepo) GetInvitation(ctx context.Context, id string) (Invitation, error) {
	if id == "" {
		return Invitation{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if inv, ok := r.invites[id]; ok {
		return *inv, nil
	}
	return Invitation{}, ErrInviteNotFound
}

func (r *MemoryRepo) GetInvitationByToken(ctx context.Context, token string) (Invitation, error) {
	if token == "" {
		return Invitation{}, ErrInvalidArgument
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invites {
		if inv.Token == token {
			return *inv, nil
		}
	}
	return Invitation{}, ErrInviteNotFound
}

func (r *MemoryRepo) SetDeliveryStatus(ctx context.Context, invitationID string, status DeliveryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invites[invitationID]
	if !ok {
		return ErrInviteNotFound
	}
	inv.DeliveryStatus = status
	return nil
}

func (r *MemoryRepo) Accept(ctx context.Context, invitationID string, acceptedAt time.Time) (Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.invites[invitationID]
	if !ok {
		return Invitation{}, ErrInviteNotFound
	}
	if inv.AcceptedAt != nil {
		return Invitation{}, ErrInviteConsumed
	}
	t, ok := r.teams[inv.TeamID]
	if !ok {
		return Invitation{}, ErrTeamNotFound
	}
	if t.SeatsUsed >= t.SeatLimit {
		return Invitation{}, ErrSeatLimitReached
	}
	t.SeatsUsed++
	at := acceptedAt
	inv.AcceptedAt = &at
	return *inv, nil
}
