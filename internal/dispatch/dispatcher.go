// Package dispatch promotes due scheduled alerts into live alerts on a
// fixed polling interval. Promotion is at-least-once: the created alert
// carries an idempotency key so a crashed or concurrent tick cannot
// publish the same occurrence twice.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"zonewatch/internal/clock"
	"zonewatch/internal/domain"
	"zonewatch/internal/feed"
	"zonewatch/internal/store"
)

// Broadcaster pushes one published alert to outbound channels.
// Params: context and broadcast payload.
// Returns: nothing; implementations swallow delivery errors.
type Broadcaster interface {
	Broadcast(ctx context.Context, broadcast domain.AlertBroadcast)
}

// Dispatcher polls for due scheduled alerts and promotes them.
// Params: store, clock, poll interval, and best-effort side channels.
// Returns: background promotion loop.
type Dispatcher struct {
	store       store.Store
	clk         clock.Clock
	interval    time.Duration
	broadcaster Broadcaster
	producer    feed.Producer
	logger      *slog.Logger
	running     atomic.Bool
}

// Option customizes dispatcher construction.
type Option func(*Dispatcher)

// WithBroadcaster attaches outbound broadcast delivery to promotions.
// Params: broadcaster implementation.
// Returns: dispatcher option.
func WithBroadcaster(b Broadcaster) Option {
	return func(d *Dispatcher) { d.broadcaster = b }
}

// WithFeedProducer attaches change-feed publishing to promotions.
// Params: feed producer implementation.
// Returns: dispatcher option.
func WithFeedProducer(p feed.Producer) Option {
	return func(d *Dispatcher) { d.producer = p }
}

// New creates dispatcher over the given store.
// Params: store, clock, poll interval, logger, and optional side channels.
// Returns: initialized dispatcher (not yet running).
func New(s store.Store, clk clock.Clock, interval time.Duration, logger *slog.Logger, opts ...Option) *Dispatcher {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:    s,
		clk:      clk,
		interval: interval,
		producer: feed.NoopProducer{},
		logger:   logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run ticks immediately, then on every interval until the context ends.
// Params: lifecycle context.
// Returns: when the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	d.Tick(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one promotion pass over all currently due entries.
// Params: context for store and side-channel calls.
// Returns: true when the pass ran, false when a previous pass still holds
// the re-entrancy guard. A tick never returns an error: per-entry failures
// are isolated so one broken entry cannot block the rest of the batch.
func (d *Dispatcher) Tick(ctx context.Context) bool {
	if !d.running.CompareAndSwap(false, true) {
		d.logger.Warn("promotion pass still running, skipping tick")
		return false
	}
	defer d.running.Store(false)

	now := d.clk.Now()
	due, err := d.store.ListDueScheduledAlerts(ctx, now)
	if err != nil {
		d.logger.Error("due scheduled alerts query failed", "error", err.Error())
		return true
	}
	if len(due) == 0 {
		return true
	}

	d.logger.Info("promoting due scheduled alerts", "count", len(due))
	for _, entry := range due {
		d.promote(ctx, entry, now)
	}
	return true
}

// promote publishes one due entry and advances its lifecycle.
// Params: due entry and tick timestamp.
// Returns: nothing; failures mark the entry failed and are logged.
func (d *Dispatcher) promote(ctx context.Context, entry domain.ScheduledAlert, now time.Time) {
	alert, err := d.store.InsertAlert(ctx, domain.Alert{
		Title:     entry.Title,
		Content:   entry.Content,
		Priority:  entry.Priority,
		ZoneID:    entry.ZoneID,
		SourceKey: entry.PromotionKey(),
	})
	if err != nil {
		d.logger.Error("scheduled alert promotion failed",
			"scheduled_id", entry.ID, "error", err.Error())
		d.markFailed(ctx, entry, now)
		return
	}

	update := store.ScheduleUpdate{Status: domain.ScheduleCompleted, LastRunAt: now}
	if entry.Recurring {
		next := domain.NextOccurrence(entry.ScheduleDate, entry.Frequency)
		update.Status = domain.SchedulePending
		update.ScheduleDate = &next
	}

	err = d.store.TransitionScheduledAlert(ctx, entry.ID, update)
	if errors.Is(err, store.ErrConflict) {
		// Another pass already claimed this occurrence; the idempotency key
		// on the alert insert made our write a no-op, so stay quiet.
		d.logger.Debug("scheduled alert already claimed", "scheduled_id", entry.ID)
		return
	}
	if err != nil {
		d.logger.Error("scheduled alert transition failed",
			"scheduled_id", entry.ID, "error", err.Error())
		d.markFailed(ctx, entry, now)
		return
	}

	d.logger.Info("scheduled alert promoted",
		"scheduled_id", entry.ID, "alert_id", alert.ID,
		"recurring", entry.Recurring, "status", update.Status)

	d.publishEvent(ctx, feed.EventAlertCreated, alert.ID, alert.ZoneID, alert, now)
	d.publishEvent(ctx, feed.EventScheduleUpdated, entry.ID, entry.ZoneID, update.Status, now)
	if d.broadcaster != nil {
		d.broadcaster.Broadcast(ctx, domain.BroadcastFromAlert(alert, true, now))
	}
}

// markFailed transitions one entry to failed after a promotion error.
// Params: entry and tick timestamp.
// Returns: nothing; conflicts and transition errors are logged only.
func (d *Dispatcher) markFailed(ctx context.Context, entry domain.ScheduledAlert, now time.Time) {
	err := d.store.TransitionScheduledAlert(ctx, entry.ID, store.ScheduleUpdate{
		Status:    domain.ScheduleFailed,
		LastRunAt: now,
	})
	if err != nil && !errors.Is(err, store.ErrConflict) {
		d.logger.Error("failed-state transition failed",
			"scheduled_id", entry.ID, "error", err.Error())
		return
	}
	d.publishEvent(ctx, feed.EventScheduleUpdated, entry.ID, entry.ZoneID, domain.ScheduleFailed, now)
}

// publishEvent emits one best-effort change event.
// Params: event classification, record identity, payload, and timestamp.
// Returns: nothing; publish errors are logged and swallowed.
func (d *Dispatcher) publishEvent(ctx context.Context, eventType feed.EventType, recordID, zoneID string, payload any, at time.Time) {
	event := feed.Event{
		ID:        feed.BuildEventID(eventType, recordID, at),
		Type:      eventType,
		RecordID:  recordID,
		ZoneID:    zoneID,
		Payload:   payload,
		Timestamp: at,
	}
	if err := d.producer.Publish(ctx, event); err != nil {
		d.logger.Warn("feed publish failed",
			"event", string(eventType), "record_id", recordID, "error", err.Error())
	}
}
