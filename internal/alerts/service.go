package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"callcenter-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// NotificationEnqueuer hands a low-balance notification to the delivery
// pipeline (job queue -> email worker). Delivery is asynchronous; enqueue
// failure for one user does not abort the batch.
type NotificationEnqueuer interface {
	EnqueueLowBalanceEmail(ctx context.Context, user LowBalanceUser) error
}

// Service aggregates and notifies users below their balance thresholds.
type Service struct {
	repo     Repository
	enqueuer NotificationEnqueuer
	rdb      *redis.Client
	log      *slog.Logger

	// cooldown suppresses repeat notifications per user.
	cooldown time.Duration
}

func NewService(repo Repository, enqueuer NotificationEnqueuer, rdb *redis.Client, log *slog.Logger, cooldown time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if cooldown <= 0 {
		cooldown = time.Hour
	}
	return &Service{repo: repo, enqueuer: enqueuer, rdb: rdb, log: log, cooldown: cooldown}
}

// CheckLowBalanceUsers returns every user at or below their warning
// threshold, classified and sorted by descending alert priority.
func (s *Service) CheckLowBalanceUsers(ctx context.Context) ([]LowBalanceUser, error) {
	var users []LowBalanceUser
	err := utils.ReadWithRetry(ctx, func(ctx context.Context) error {
		var err error
		users, err = s.repo.ListBelowWarning(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range users {
		users[i].Level = Classify(users[i].CurrentBalance, users[i].WarningThreshold, users[i].CriticalThreshold)
	}
	SortUsers(users)
	return users, nil
}

// SendNotifications enqueues a low-balance email for each user at warning
// level or worse, skipping users still inside the cooldown window.
// Returns the number of notifications enqueued.
func (s *Service) SendNotifications(ctx context.Context) (int, error) {
	users, err := s.CheckLowBalanceUsers(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, u := range users {
		if u.Level == LevelNormal {
			continue
		}
		if s.rdb != nil {
			ok, err := utils.AcquireCooldown(ctx, s.rdb, cooldownKey(u.UserID), s.cooldown)
			if err != nil {
				s.log.Warn("cooldown check failed, notifying anyway", "user_id", u.UserID, "err", err)
			} else if !ok {
				continue
			}
		}
		if err := s.enqueuer.EnqueueLowBalanceEmail(ctx, u); err != nil {
			s.log.Error("low balance notification enqueue failed", "user_id", u.UserID, "err", err)
			continue
		}
		sent++
	}

	s.log.Info("low balance notifications enqueued", "count", sent, "candidates", len(users))
	return sent, nil
}

// ClearCooldown drops the user's notification cooldown early. After a
// balance top-up the next low-balance alert must not be suppressed by a
// window started before the deposit.
func (s *Service) ClearCooldown(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}
	if s.rdb == nil {
		return nil
	}
	return utils.ReleaseCooldown(ctx, s.rdb, cooldownKey(userID))
}

func cooldownKey(userID string) string {
	return fmt.Sprintf("alerts:cooldown:%s", userID)
}
