package store

import (
	"context"
	"errors"
	"time"

	"zonewatch/internal/domain"
)

var (
	// ErrNotFound indicates absent record.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the record left the expected status before the update landed.
	ErrConflict = errors.New("status conflict")
)

// AlertFilter narrows alert listings.
// Params: optional zone binding.
// Returns: filter applied to ListAlerts.
type AlertFilter struct {
	ZoneID string
}

// ScheduleUpdate carries one conditional scheduled-alert transition.
// Params: target status, run timestamp, and optional advanced due time.
// Returns: update payload applied only while the entry is still pending.
type ScheduleUpdate struct {
	Status       domain.ScheduleStatus
	LastRunAt    time.Time
	ScheduleDate *time.Time
}

// Store provides persistence for alerts, zones, schedules, and profiles.
// Params: CRUD operations plus the conditional transition used by the dispatcher.
// Returns: backend persistence behavior.
type Store interface {
	InsertAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error)
	ListAlerts(ctx context.Context, filter AlertFilter) ([]domain.Alert, error)

	InsertZone(ctx context.Context, zone domain.Zone) (domain.Zone, error)
	ListZones(ctx context.Context) ([]domain.Zone, error)

	InsertScheduledAlert(ctx context.Context, entry domain.ScheduledAlert) (domain.ScheduledAlert, error)
	ListScheduledAlerts(ctx context.Context) ([]domain.ScheduledAlert, error)
	ListDueScheduledAlerts(ctx context.Context, now time.Time) ([]domain.ScheduledAlert, error)
	TransitionScheduledAlert(ctx context.Context, id string, update ScheduleUpdate) error

	GetUserProfile(ctx context.Context, userID string) (domain.UserProfile, error)
	UpsertUserProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
	ListUserProfiles(ctx context.Context) ([]domain.UserProfile, error)

	Close() error
}
