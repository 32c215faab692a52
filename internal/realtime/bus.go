package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Channel identifies a table-change event stream.
type Channel string

const (
	ChannelBalance     Channel = "realtime:credits"
	ChannelAgents      Channel = "realtime:agents"
	ChannelAssignments Channel = "realtime:assignments"
)

// Event is the change notification published after a committed mutation.
// EntityID is the affected row's natural key (user_id for balance events).
type Event struct {
	Channel  Channel   `json:"channel"`
	EntityID string    `json:"entity_id"`
	At       time.Time `json:"at"`
}

// Bus is a Redis pub/sub change-event bus. Publishers fire after commit;
// subscribers use events as cache-invalidation hints, never as the source
// of truth (a missed event is healed by the periodic reconciliation tick).
type Bus struct {
	rdb   *redis.Client
	log   *slog.Logger
	clock func() time.Time
}

func NewBus(rdb *redis.Client, log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{rdb: rdb, log: log, clock: time.Now}
}

func (b *Bus) Publish(ctx context.Context, ch Channel, entityID string) error {
	ev := Event{Channel: ch, EntityID: entityID, At: b.clock().UTC()}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, string(ch), raw).Err()
}

// PublishBalanceChange implements credits.ChangePublisher.
func (b *Bus) PublishBalanceChange(ctx context.Context, userID string) error {
	return b.Publish(ctx, ChannelBalance, userID)
}

// PublishAgentsChange signals that the agent roster changed after a sync run.
func (b *Bus) PublishAgentsChange(ctx context.Context) error {
	return b.Publish(ctx, ChannelAgents, "roster")
}

// PublishAssignmentChange signals that a user's agent assignments changed.
func (b *Bus) PublishAssignmentChange(ctx context.Context, userID string) error {
	return b.Publish(ctx, ChannelAssignments, userID)
}

// Subscribe delivers events for a channel until ctx is canceled.
// Malformed payloads are logged and dropped.
func (b *Bus) Subscribe(ctx context.Context, ch Channel) <-chan Event {
	out := make(chan Event, 16)
	sub := b.rdb.Subscribe(ctx, string(ch))

	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("realtime event decode failed", "channel", ch, "err", err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Debounce collapses bursts of events into a single tick after the quiet
// window elapses. Used by the low-balance monitor so a batch of balance
// writes triggers one re-check, not one per write.
func Debounce(ctx context.Context, in <-chan Event, window time.Duration) <-chan struct{} {
	if window <= 0 {
		window = time.Second
	}
	out := make(chan struct{}, 1)

	go func() {
		defer close(out)
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case _, ok := <-in:
				if !ok {
					return
				}
				if timer == nil {
					timer = time.NewTimer(window)
					fire = timer.C
				} else {
					if !timer.Stop() {
						select {
						case <-timer.C:
						default:
						}
					}
					timer.Reset(window)
				}
			case <-fire:
				timer = nil
				fire = nil
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
