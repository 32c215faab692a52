package mailer

import (
	"context"
	"fmt"
	"log/slog"

	"callcenter-platform/internal/team"

	"github.com/riverqueue/river"
)

// InviteEmailArgs references the invitation row; the worker loads current
// state instead of trusting a payload snapshot.
type InviteEmailArgs struct {
	InvitationID string `json:"invitation_id"`
}

func (InviteEmailArgs) Kind() string { return "invite_email" }

// InviteEmailWorker delivers team invitations and records the outcome on the
// invitation row.
type InviteEmailWorker struct {
	river.WorkerDefaults[InviteEmailArgs]
	repo    team.Repository
	mailer  Mailer
	baseURL string
	log     *slog.Logger
}

func NewInviteEmailWorker(repo team.Repository, mailer Mailer, baseURL string, log *slog.Logger) *InviteEmailWorker {
	if log == nil {
		log = slog.Default()
	}
	return &InviteEmailWorker{repo: repo, mailer: mailer, baseURL: baseURL, log: log}
}

func (w *InviteEmailWorker) Work(ctx context.Context, job *river.Job[InviteEmailArgs]) error {
	inv, err := w.repo.GetInvitation(ctx, job.Args.InvitationID)
	if err != nil {
		return err
	}
	if inv.DeliveryStatus == team.DeliverySent {
		return nil
	}

	msg := Message{
		To:      inv.Email,
		Subject: "You have been invited to a team",
		Body: fmt.Sprintf(
			"You have been invited to join a team as %s.\n\nAccept the invitation:\n%s/invite/%s\n\nThe link expires on %s.\n",
			inv.Role, w.baseURL, inv.Token, inv.ExpiresAt.Format("2006-01-02"),
		),
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		if stErr := w.repo.SetDeliveryStatus(ctx, inv.ID, team.DeliveryFailed); stErr != nil {
			w.log.Error("delivery status update failed", "invitation_id", inv.ID, "err", stErr)
		}
		return err
	}
	if err := w.repo.SetDeliveryStatus(ctx, inv.ID, team.DeliverySent); err != nil {
		w.log.Error("delivery status update failed", "invitation_id", inv.ID, "err", err)
	}
	w.log.Info("invite email sent", "invitation_id", inv.ID)
	return nil
}

// LowBalanceEmailArgs snapshots the alert at enqueue time.
type LowBalanceEmailArgs struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Level   string `json:"level"`
	Balance string `json:"balance"`
}

func (LowBalanceEmailArgs) Kind() string { return "low_balance_email" }

// LowBalanceEmailWorker delivers low-balance notifications.
type LowBalanceEmailWorker struct {
	river.WorkerDefaults[LowBalanceEmailArgs]
	mailer Mailer
	log    *slog.Logger
}

func NewLowBalanceEmailWorker(mailer Mailer, log *slog.Logger) *LowBalanceEmailWorker {
	if log == nil {
		log = slog.Default()
	}
	return &LowBalanceEmailWorker{mailer: mailer, log: log}
}

func (w *LowBalanceEmailWorker) Work(ctx context.Context, job *river.Job[LowBalanceEmailArgs]) error {
	args := job.Args
	if args.Email == "" {
		// Nothing to deliver to; drop instead of retrying forever.
		w.log.Warn("low balance alert without email", "user_id", args.UserID)
		return nil
	}

	var subject, lead string
	switch args.Level {
	case "zero", "almost_zero":
		subject = "Your call credits are exhausted"
		lead = "Your balance has run out and calling is paused."
	case "critical":
		subject = "Your call credits are critically low"
		lead = "Your balance is critically low."
	default:
		subject = "Your call credits are running low"
		lead = "Your balance is below the warning threshold."
	}

	msg := Message{
		To:      args.Email,
		Subject: subject,
		Body:    fmt.Sprintf("%s\n\nCurrent balance: %s credits.\n\nTop up to keep your agents answering calls.\n", lead, args.Balance),
	}
	if err := w.mailer.Send(ctx, msg); err != nil {
		return err
	}
	w.log.Info("low balance email sent", "user_id", args.UserID, "level", args.Level)
	return nil
}
