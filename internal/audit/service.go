package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to tenant users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.CompanyID == "" {
		return ErrInvalidEvent
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogBalanceAdjustment records an admin-initiated balance mutation.
func (s *Service) LogBalanceAdjustment(ctx context.Context, companyID, actorUserID, actorRole, ip, targetUserID, message, metadata string) error {
	return s.Append(ctx, Event{
		CompanyID:    companyID,
		Type:         EventTypeBalanceAdjustment,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		TargetUserID: targetUserID,
		Message:      message,
		Metadata:     metadata,
	})
}

// LogInviteCreated records a team invitation being issued.
func (s *Service) LogInviteCreated(ctx context.Context, companyID, actorUserID, actorRole, ip, invitationID, metadata string) error {
	return s.Append(ctx, Event{
		CompanyID:    companyID,
		Type:         EventTypeInviteCreated,
		ActorUserID:  actorUserID,
		ActorRole:    actorRole,
		IPAddress:    ip,
		InvitationID: invitationID,
		Message:      "invitation created",
		Metadata:     metadata,
	})
}

// LogAgentSync records the outcome of an agent sync run.
func (s *Service) LogAgentSync(ctx context.Context, companyID, actorUserID, syncRunID, message, metadata string) error {
	return s.Append(ctx, Event{
		CompanyID:   companyID,
		Type:        EventTypeAgentSync,
		ActorUserID: actorUserID,
		SyncRunID:   syncRunID,
		Message:     message,
		Metadata:    metadata,
	})
}
