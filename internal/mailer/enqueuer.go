package mailer

import (
	"context"

	"callcenter-platform/internal/alerts"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// JobInserter is the slice of the queue client the enqueuer needs.
type JobInserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Enqueuer puts email jobs on the queue. It backs both the invitation
// outbox and the low-balance notification pipeline.
type Enqueuer struct {
	client JobInserter
}

func NewEnqueuer(client JobInserter) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) EnqueueInviteEmail(ctx context.Context, invitationID string) error {
	_, err := e.client.Insert(ctx, InviteEmailArgs{InvitationID: invitationID}, nil)
	return err
}

func (e *Enqueuer) EnqueueLowBalanceEmail(ctx context.Context, user alerts.LowBalanceUser) error {
	_, err := e.client.Insert(ctx, LowBalanceEmailArgs{
		UserID:  user.UserID,
		Email:   user.Email,
		Level:   string(user.Level),
		Balance: user.CurrentBalance.StringFixed(2),
	}, nil)
	return err
}
