package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"zonewatch/internal/clock"
	"zonewatch/internal/config"
	"zonewatch/internal/domain"
	"zonewatch/internal/feed"
	"zonewatch/internal/notify"
	"zonewatch/internal/store"
)

// Manager implements the application operations behind the HTTP surface.
// Params: store, side channels, and clock.
// Returns: operation layer between transport and persistence.
type Manager struct {
	cfg      config.Config
	logger   *slog.Logger
	store    store.Store
	notifier *notify.Dispatcher
	producer feed.Producer
	clk      clock.Clock
}

// NewManager creates operation manager.
// Params: config snapshot, logger, store, broadcast dispatcher, feed
// producer, and clock.
// Returns: initialized manager.
func NewManager(cfg config.Config, logger *slog.Logger, s store.Store, notifier *notify.Dispatcher, producer feed.Producer, clk clock.Clock) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if producer == nil {
		producer = feed.NoopProducer{}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		store:    s,
		notifier: notifier,
		producer: producer,
		clk:      clk,
	}
}

// CreateAlert validates and stores one immediate alert.
// Params: context and alert payload.
// Returns: stored alert; broadcast and feed publish are best-effort.
func (m *Manager) CreateAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	if err := alert.Validate(); err != nil {
		return domain.Alert{}, fmt.Errorf("validate alert: %w", err)
	}

	stored, err := m.store.InsertAlert(ctx, alert)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("store alert: %w", err)
	}

	now := m.clk.Now()
	m.publishEvent(ctx, feed.EventAlertCreated, stored.ID, stored.ZoneID, stored, now)
	if m.notifier != nil {
		m.notifier.Broadcast(ctx, domain.BroadcastFromAlert(stored, false, now))
	}
	return stored, nil
}

// ListAlerts returns alerts newest-first with optional zone filter.
// Params: context and optional zone id.
// Returns: matching alerts.
func (m *Manager) ListAlerts(ctx context.Context, zoneID string) ([]domain.Alert, error) {
	alerts, err := m.store.ListAlerts(ctx, store.AlertFilter{ZoneID: zoneID})
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// CreateZone validates and stores one zone.
// Params: context and zone payload.
// Returns: stored zone.
func (m *Manager) CreateZone(ctx context.Context, zone domain.Zone) (domain.Zone, error) {
	if err := zone.Validate(); err != nil {
		return domain.Zone{}, fmt.Errorf("validate zone: %w", err)
	}

	stored, err := m.store.InsertZone(ctx, zone)
	if err != nil {
		return domain.Zone{}, fmt.Errorf("store zone: %w", err)
	}
	m.publishEvent(ctx, feed.EventZoneCreated, stored.ID, stored.ID, stored, m.clk.Now())
	return stored, nil
}

// ListZones returns all zones.
// Params: context.
// Returns: zones newest-first.
func (m *Manager) ListZones(ctx context.Context) ([]domain.Zone, error) {
	zones, err := m.store.ListZones(ctx)
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}
	return zones, nil
}

// ScheduleAlert validates and queues one scheduled alert.
// Params: context and scheduled alert payload.
// Returns: stored entry in pending status.
func (m *Manager) ScheduleAlert(ctx context.Context, entry domain.ScheduledAlert) (domain.ScheduledAlert, error) {
	if err := entry.Validate(); err != nil {
		return domain.ScheduledAlert{}, fmt.Errorf("validate scheduled alert: %w", err)
	}
	entry.Status = domain.SchedulePending

	stored, err := m.store.InsertScheduledAlert(ctx, entry)
	if err != nil {
		return domain.ScheduledAlert{}, fmt.Errorf("store scheduled alert: %w", err)
	}
	m.publishEvent(ctx, feed.EventScheduleCreated, stored.ID, stored.ZoneID, stored, m.clk.Now())
	return stored, nil
}

// ListScheduledAlerts returns scheduled alerts ordered by due time.
// Params: context.
// Returns: all scheduled alerts.
func (m *Manager) ListScheduledAlerts(ctx context.Context) ([]domain.ScheduledAlert, error) {
	entries, err := m.store.ListScheduledAlerts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list scheduled alerts: %w", err)
	}
	return entries, nil
}

// AlertMetrics aggregates stored alerts for the analytics endpoint.
// Params: context.
// Returns: totals with priority, zone, and month breakdowns.
func (m *Manager) AlertMetrics(ctx context.Context) (domain.AlertMetrics, error) {
	alerts, err := m.store.ListAlerts(ctx, store.AlertFilter{})
	if err != nil {
		return domain.AlertMetrics{}, fmt.Errorf("list alerts: %w", err)
	}
	zones, err := m.store.ListZones(ctx)
	if err != nil {
		return domain.AlertMetrics{}, fmt.Errorf("list zones: %w", err)
	}
	return domain.BuildAlertMetrics(alerts, zones), nil
}

// AssignRole creates or updates one user profile role.
// Params: context, user id, and role value.
// Returns: stored profile.
func (m *Manager) AssignRole(ctx context.Context, userID string, role domain.Role) (domain.UserProfile, error) {
	profile, err := m.store.UpsertUserProfile(ctx, domain.UserProfile{UserID: userID, Role: role})
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("store user profile: %w", err)
	}
	m.logger.Info("user role assigned", "user_id", userID, "role", string(role))
	return profile, nil
}

// ListUsers returns all user profiles.
// Params: context.
// Returns: profiles ordered by user id.
func (m *Manager) ListUsers(ctx context.Context) ([]domain.UserProfile, error) {
	profiles, err := m.store.ListUserProfiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}
	return profiles, nil
}

// publishEvent emits one best-effort change event.
// Params: event classification, record identity, payload, and timestamp.
// Returns: nothing; publish errors are logged and swallowed.
func (m *Manager) publishEvent(ctx context.Context, eventType feed.EventType, recordID, zoneID string, payload any, at time.Time) {
	event := feed.Event{
		ID:        feed.BuildEventID(eventType, recordID, at),
		Type:      eventType,
		RecordID:  recordID,
		ZoneID:    zoneID,
		Payload:   payload,
		Timestamp: at,
	}
	if err := m.producer.Publish(ctx, event); err != nil {
		m.logger.Warn("feed publish failed",
			"event", string(eventType), "record_id", recordID, "error", err.Error())
	}
}
