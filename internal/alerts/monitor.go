package alerts

import (
	"context"
	"log/slog"
	"time"

	"callcenter-platform/internal/realtime"
)

// Monitor drives the low-balance check on two triggers:
// - a fixed poll interval (reconciliation fallback)
// - balance-change events from the realtime bus, debounced so a burst of
//   deductions causes one re-check
type Monitor struct {
	svc  *Service
	bus  *realtime.Bus
	log  *slog.Logger
	tick time.Duration

	// debounceWindow collapses event bursts; ~1s keeps reaction fast
	// without hammering the aggregation query.
	debounceWindow time.Duration
}

func NewMonitor(svc *Service, bus *realtime.Bus, log *slog.Logger, tick time.Duration) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	if tick <= 0 {
		tick = 5 * time.Minute
	}
	return &Monitor{
		svc:            svc,
		bus:            bus,
		log:            log,
		tick:           tick,
		debounceWindow: time.Second,
	}
}

// Run blocks until ctx is canceled. Intended to be started as a goroutine
// from main.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	var events <-chan struct{}
	if m.bus != nil {
		events = realtime.Debounce(ctx, m.bus.Subscribe(ctx, realtime.ChannelBalance), m.debounceWindow)
	}

	m.check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			m.check(ctx)
		}
	}
}

func (m *Monitor) check(ctx context.Context) {
	sent, err := m.svc.SendNotifications(ctx)
	if err != nil {
		m.log.Error("low balance check failed", "err", err)
		return
	}
	if sent > 0 {
		m.log.Info("low balance check complete", "notified", sent)
	}
}
