package agentsync

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

// SyncJobArgs is the queue payload for a scheduled reconciliation pass.
type SyncJobArgs struct{}

func (SyncJobArgs) Kind() string { return "agent_sync" }

func (SyncJobArgs) InsertOpts() river.InsertOpts {
	// Overlapping syncs reconcile the same provider state; keep one in flight.
	return river.InsertOpts{
		UniqueOpts: river.UniqueOpts{ByState: []rivertype.JobState{
			rivertype.JobStateAvailable, rivertype.JobStateRunning, rivertype.JobStateRetryable, rivertype.JobStateScheduled,
		}},
	}
}

// SyncWorker runs the reconciler from the job queue.
type SyncWorker struct {
	river.WorkerDefaults[SyncJobArgs]
	svc *Service
	log *slog.Logger
}

func NewSyncWorker(svc *Service, log *slog.Logger) *SyncWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SyncWorker{svc: svc, log: log}
}

func (w *SyncWorker) Work(ctx context.Context, job *river.Job[SyncJobArgs]) error {
	// Failures are recorded on the sync run itself; returning the error lets
	// the queue retry with backoff on top of that.
	_, err := w.svc.SyncNow(ctx, TriggerScheduled)
	return err
}
