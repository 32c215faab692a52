package team

import (
	"context"
	"errors"
	"time"
)

var (
	ErrTeamNotFound   = errors.New("team: team not found")
	ErrInviteNotFound = errors.New("team: invitation not found")

	// ErrSeatLimitReached maps to 402 at the HTTP layer.
	ErrSeatLimitReached = errors.New("team: seat limit reached")

	// ErrInviteConsumed is returned when the token was already accepted.
	ErrInviteConsumed = errors.New("team: invitation already accepted")

	// ErrInviteExpired is returned past the 7-day window.
	ErrInviteExpired = errors.New("team: invitation expired")

	ErrInvalidArgument = errors.New("team: invalid argument")
)

// Repository persists teams and invitations.
type Repository interface {
	GetTeam(ctx context.Context, teamID string) (Team, error)

	CreateInvitation(ctx context.Context, inv Invitation) (Invitation, error)
	GetInvitation(ctx context.Context, id string) (Invitation, error)
	GetInvitationByToken(ctx context.Context, token string) (Invitation, error)

	// SetDeliveryStatus is called by the email worker after a send attempt.
	SetDeliveryStatus(ctx context.Context, invitationID string, status DeliveryStatus) error

	// Accept consumes the invitation and one team seat atomically. Fails
	// with ErrSeatLimitReached if the team filled up since the invite was
	// created, ErrInviteConsumed on a reused token.
	Accept(ctx context.Context, invitationID string, acceptedAt time.Time) (Invitation, error)
}
