package team

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"callcenter-platform/internal/rbac"

	"github.com/google/uuid"
)

// inviteTTL is how long an invitation stays redeemable.
const inviteTTL = 7 * 24 * time.Hour

// InviteEnqueuer hands the invite email to the outbox. The invitation row is
// already durable when this is called.
type InviteEnqueuer interface {
	EnqueueInviteEmail(ctx context.Context, invitationID string) error
}

// Service creates and redeems team invitations.
type Service struct {
	repo     Repository
	enqueuer InviteEnqueuer
	log      *slog.Logger

	// baseURL builds the invite acceptance link.
	baseURL string

	clock func() time.Time
}

func NewService(repo Repository, enqueuer InviteEnqueuer, log *slog.Logger, baseURL string) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:     repo,
		enqueuer: enqueuer,
		log:      log,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		clock:    time.Now,
	}
}

type InviteRequest struct {
	TeamID string
	Email  string
	Role   string

	// ActorUserID identifies who sent the invite.
	ActorUserID string
}

type InviteResult struct {
	Invitation Invitation
	Link       string

	// Warn is set when the email could not be queued; the caller should
	// deliver the link out of band.
	Warn string
}

// Invite validates the request, persists the invitation, and queues the
// invite email. A queue failure degrades to a warning; the invitation and
// its link are already durable.
func (s *Service) Invite(ctx context.Context, req InviteRequest) (InviteResult, error) {
	if err := validateInvite(req); err != nil {
		return InviteResult{}, err
	}

	t, err := s.repo.GetTeam(ctx, req.TeamID)
	if err != nil {
		return InviteResult{}, err
	}
	if t.SeatsUsed >= t.SeatLimit {
		return InviteResult{}, ErrSeatLimitReached
	}

	now := s.clock().UTC()
	inv := Invitation{
		ID:             uuid.NewString(),
		TeamID:         t.ID,
		CompanyID:      t.CompanyID,
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		Role:           req.Role,
		Token:          uuid.NewString(),
		ExpiresAt:      now.Add(inviteTTL),
		DeliveryStatus: DeliveryPending,
		CreatedAt:      now,
	}
	inv, err = s.repo.CreateInvitation(ctx, inv)
	if err != nil {
		return InviteResult{}, err
	}

	out := InviteResult{Invitation: inv, Link: s.inviteLink(inv.Token)}
	if s.enqueuer == nil {
		out.Warn = "email delivery not configured; send the link manually"
		return out, nil
	}
	if err := s.enqueuer.EnqueueInviteEmail(ctx, inv.ID); err != nil {
		s.log.Error("invite email enqueue failed", "invitation_id", inv.ID, "err", err)
		if stErr := s.repo.SetDeliveryStatus(ctx, inv.ID, DeliveryFailed); stErr != nil {
			s.log.Error("delivery status update failed", "invitation_id", inv.ID, "err", stErr)
		}
		out.Warn = "invite created but email could not be queued; send the link manually"
	}

	s.log.Info("invitation created",
		"invitation_id", inv.ID, "team_id", inv.TeamID, "role", inv.Role, "actor", req.ActorUserID)
	return out, nil
}

// Accept redeems an invitation token and consumes a team seat.
func (s *Service) Accept(ctx context.Context, token string) (Invitation, error) {
	if token == "" {
		return Invitation{}, ErrInvalidArgument
	}
	inv, err := s.repo.GetInvitationByToken(ctx, token)
	if err != nil {
		return Invitation{}, err
	}
	if inv.Expired(s.clock().UTC()) {
		return Invitation{}, ErrInviteExpired
	}
	return s.repo.Accept(ctx, inv.ID, s.clock().UTC())
}

func (s *Service) inviteLink(token string) string {
	return fmt.Sprintf("%s/invite/%s", s.baseURL, token)
}

func validateInvite(req InviteRequest) error {
	if req.TeamID == "" || req.Email == "" || req.Role == "" {
		return fmt.Errorf("%w: team_id, email and role are required", ErrInvalidArgument)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return fmt.Errorf("%w: invalid email", ErrInvalidArgument)
	}
	if !rbac.IsInvitable(req.Role) {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidArgument, req.Role)
	}
	return nil
}
