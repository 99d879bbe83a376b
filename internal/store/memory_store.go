package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"zonewatch/internal/domain"
)

// MemoryStore keeps all records in process memory for single-instance mode.
// Params: in-memory maps and injected clock function.
// Returns: store implementation without external dependencies.
type MemoryStore struct {
	mu        sync.RWMutex
	now       func() time.Time
	seq       uint64
	alerts    map[string]memoryAlert
	zones     map[string]memoryZone
	scheduled map[string]domain.ScheduledAlert
	profiles  map[string]domain.UserProfile
}

var _ Store = (*MemoryStore)(nil)

type memoryAlert struct {
	alert domain.Alert
	seq   uint64
}

type memoryZone struct {
	zone domain.Zone
	seq  uint64
}

// NewMemoryStore creates in-memory store.
// Params: now function (defaults to time.Now when nil).
// Returns: initialized in-memory store.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		now:       now,
		alerts:    make(map[string]memoryAlert),
		zones:     make(map[string]memoryZone),
		scheduled: make(map[string]domain.ScheduledAlert),
		profiles:  make(map[string]domain.UserProfile),
	}
}

// InsertAlert stores one alert, assigning identity and creation time.
// Params: alert payload; SourceKey deduplicates promotion retries.
// Returns: stored alert (existing record when source key already landed).
func (s *MemoryStore) InsertAlert(_ context.Context, alert domain.Alert) (domain.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key := strings.TrimSpace(alert.SourceKey); key != "" {
		for _, entry := range s.alerts {
			if entry.alert.SourceKey == key {
				return entry.alert, nil
			}
		}
	}

	alert.ID = uuid.NewString()
	alert.CreatedAt = s.now()
	s.seq++
	s.alerts[alert.ID] = memoryAlert{alert: alert, seq: s.seq}
	return alert, nil
}

// ListAlerts returns alerts newest-first with optional zone filter.
// Params: filter with optional zone id.
// Returns: matching alerts ordered by creation, newest first.
func (s *MemoryStore) ListAlerts(_ context.Context, filter AlertFilter) ([]domain.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]memoryAlert, 0, len(s.alerts))
	for _, entry := range s.alerts {
		if filter.ZoneID != "" && entry.alert.ZoneID != filter.ZoneID {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq > entries[j].seq
	})

	out := make([]domain.Alert, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.alert)
	}
	return out, nil
}

// InsertZone stores one zone, assigning identity and creation time.
// Params: zone payload.
// Returns: stored zone record.
func (s *MemoryStore) InsertZone(_ context.Context, zone domain.Zone) (domain.Zone, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	zone.ID = uuid.NewString()
	zone.CreatedAt = s.now()
	s.seq++
	s.zones[zone.ID] = memoryZone{zone: zone, seq: s.seq}
	return zone, nil
}

// ListZones returns zones newest-first.
// Params: none.
// Returns: all zones ordered by creation, newest first.
func (s *MemoryStore) ListZones(_ context.Context) ([]domain.Zone, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]memoryZone, 0, len(s.zones))
	for _, entry := range s.zones {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq > entries[j].seq
	})

	out := make([]domain.Zone, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.zone)
	}
	return out, nil
}

// InsertScheduledAlert stores one scheduled alert in pending status.
// Params: scheduled alert payload.
// Returns: stored entry with assigned identity.
func (s *MemoryStore) InsertScheduledAlert(_ context.Context, entry domain.ScheduledAlert) (domain.ScheduledAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	if entry.Status == "" {
		entry.Status = domain.SchedulePending
	}
	s.scheduled[entry.ID] = entry
	return entry, nil
}

// ListScheduledAlerts returns all scheduled alerts ordered by due time.
// Params: none.
// Returns: entries ordered by schedule date ascending.
func (s *MemoryStore) ListScheduledAlerts(_ context.Context) ([]domain.ScheduledAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScheduledAlert, 0, len(s.scheduled))
	for _, entry := range s.scheduled {
		out = append(out, entry)
	}
	sortByDue(out)
	return out, nil
}

// ListDueScheduledAlerts returns pending entries due at or before now.
// Params: reference timestamp.
// Returns: due entries ordered by schedule date ascending (earliest first).
func (s *MemoryStore) ListDueScheduledAlerts(_ context.Context, now time.Time) ([]domain.ScheduledAlert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ScheduledAlert, 0)
	for _, entry := range s.scheduled {
		if entry.Status != domain.SchedulePending {
			continue
		}
		if entry.ScheduleDate.After(now) {
			continue
		}
		out = append(out, entry)
	}
	sortByDue(out)
	return out, nil
}

// TransitionScheduledAlert applies one conditional lifecycle transition.
// Params: entry id and update payload.
// Returns: ErrNotFound for unknown id; ErrConflict when entry is no longer pending.
func (s *MemoryStore) TransitionScheduledAlert(_ context.Context, id string, update ScheduleUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.scheduled[id]
	if !ok {
		return ErrNotFound
	}
	if entry.Status != domain.SchedulePending {
		return ErrConflict
	}

	entry.Status = update.Status
	lastRun := update.LastRunAt
	entry.LastRunAt = &lastRun
	if update.ScheduleDate != nil {
		entry.ScheduleDate = *update.ScheduleDate
	}
	s.scheduled[id] = entry
	return nil
}

// GetUserProfile returns profile by user id.
// Params: user id key.
// Returns: stored profile or ErrNotFound.
func (s *MemoryStore) GetUserProfile(_ context.Context, userID string) (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, ok := s.profiles[userID]
	if !ok {
		return domain.UserProfile{}, ErrNotFound
	}
	return profile, nil
}

// UpsertUserProfile creates or replaces one profile row.
// Params: profile payload keyed by user id.
// Returns: stored profile.
func (s *MemoryStore) UpsertUserProfile(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.profiles[profile.UserID]; ok {
		profile.CreatedAt = existing.CreatedAt
	} else {
		profile.CreatedAt = s.now()
	}
	s.profiles[profile.UserID] = profile
	return profile, nil
}

// ListUserProfiles returns all profiles ordered by user id.
// Params: none.
// Returns: deterministic profile listing.
func (s *MemoryStore) ListUserProfiles(_ context.Context) ([]domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.UserProfile, 0, len(s.profiles))
	for _, profile := range s.profiles {
		out = append(out, profile)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

// Close releases memory store resources.
// Params: none.
// Returns: nil.
func (s *MemoryStore) Close() error {
	return nil
}

// sortByDue orders entries by schedule date ascending with id tiebreak.
// Params: entries slice sorted in place.
// Returns: deterministic due ordering side-effect.
func sortByDue(entries []domain.ScheduledAlert) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ScheduleDate.Equal(entries[j].ScheduleDate) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].ScheduleDate.Before(entries[j].ScheduleDate)
	})
}
