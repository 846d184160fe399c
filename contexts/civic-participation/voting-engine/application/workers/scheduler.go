package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	application "agora/contexts/civic-participation/voting-engine/application"
	"agora/contexts/civic-participation/voting-engine/application/commands"
	"agora/contexts/civic-participation/voting-engine/domain/entities"
	"agora/contexts/civic-participation/voting-engine/ports"
)

const defaultSweepInterval = 30 * time.Second

// LifecycleScheduler drives time-triggered transitions: pending events open
// at their start instant, open events close and tally once their window
// ends. Every sweep is idempotent, so overlapping schedulers or restarts are
// harmless.
type LifecycleScheduler struct {
	Events    ports.EventRepository
	Lifecycle commands.LifecycleUseCase
	Clock     clockwork.Clock
	Interval  time.Duration
	Disabled  bool
	Logger    *slog.Logger
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s LifecycleScheduler) Run(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	if s.Disabled {
		logger.Info("lifecycle scheduler disabled by feature flag",
			"event", "voting_scheduler_disabled",
			"module", "civic-participation/voting-engine",
			"layer", "worker",
		)
		return nil
	}
	interval := s.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	ticker := s.clock().NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := s.RunOnce(ctx); err != nil {
				logger.Error("lifecycle sweep failed",
					"event", "voting_scheduler_sweep_failed",
					"module", "civic-participation/voting-engine",
					"layer", "worker",
					"error", err.Error(),
				)
			}
		}
	}
}

// RunOnce performs a single sweep over due events. Per-event failures are
// logged and skipped so one stuck event cannot stall the rest.
func (s LifecycleScheduler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(s.Logger)
	now := s.clock().Now().UTC()

	due, err := s.Events.ListDueEvents(ctx, now)
	if err != nil {
		logger.Error("due event listing failed",
			"event", "voting_scheduler_list_failed",
			"module", "civic-participation/voting-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}

	for _, event := range due {
		switch event.Status {
		case entities.EventStatusPending:
			if err := s.Lifecycle.OpenEvent(ctx, event.EventID); err != nil {
				logger.Error("scheduled open failed",
					"event", "voting_scheduler_open_failed",
					"module", "civic-participation/voting-engine",
					"layer", "worker",
					"vote_event_id", event.EventID,
					"error", err.Error(),
				)
			}
		case entities.EventStatusOpen:
			if _, err := s.Lifecycle.CloseAndTally(ctx, event.EventID, "scheduler"); err != nil {
				logger.Error("scheduled close-and-tally failed",
					"event", "voting_scheduler_tally_failed",
					"module", "civic-participation/voting-engine",
					"layer", "worker",
					"vote_event_id", event.EventID,
					"error", err.Error(),
				)
			}
		}
	}
	return nil
}

func (s LifecycleScheduler) clock() clockwork.Clock {
	if s.Clock == nil {
		return clockwork.NewRealClock()
	}
	return s.Clock
}
