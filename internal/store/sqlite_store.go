package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"zonewatch/internal/domain"
)

// SQLiteStore persists records in one local SQLite database.
// Params: sqlx handle and injected clock function.
// Returns: durable store implementation for single-node deployments.
type SQLiteStore struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database, enables WAL mode, and runs migrations.
// Params: database file path and now function (defaults to time.Now when nil).
// Returns: initialized store or open/migration error.
func NewSQLiteStore(dbPath string, now func() time.Time) (*SQLiteStore, error) {
	if now == nil {
		now = time.Now
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	// WAL keeps readers unblocked while the dispatcher writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	s := &SQLiteStore{db: db, now: now}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return s, nil
}

// runMigrations applies outstanding schema migrations in order.
// Params: none.
// Returns: first migration error.
func (s *SQLiteStore) runMigrations() error {
	var version int
	if err := s.db.Get(&version, "PRAGMA user_version"); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < 1 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("apply schema v1: %w", err)
		}
		if _, err := s.db.Exec("PRAGMA user_version=1"); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
	}
	return nil
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS alerts (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL,
	priority   TEXT NOT NULL,
	zone_id    TEXT NOT NULL DEFAULT '',
	source_key TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_source_key
	ON alerts(source_key) WHERE source_key != '';
CREATE INDEX IF NOT EXISTS idx_alerts_zone ON alerts(zone_id);

CREATE TABLE IF NOT EXISTS zones (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	coordinates TEXT NOT NULL DEFAULT '[]',
	created_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS scheduled_alerts (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	content       TEXT NOT NULL,
	priority      TEXT NOT NULL,
	zone_id       TEXT NOT NULL DEFAULT '',
	recurring     INTEGER NOT NULL DEFAULT 0,
	frequency     TEXT NOT NULL DEFAULT '',
	schedule_date TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'pending',
	last_run_at   TEXT,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scheduled_due
	ON scheduled_alerts(status, schedule_date);

CREATE TABLE IF NOT EXISTS user_profiles (
	user_id    TEXT PRIMARY KEY,
	role       TEXT NOT NULL,
	created_at TEXT NOT NULL
);
`

type alertRow struct {
	ID        string `db:"id"`
	Title     string `db:"title"`
	Content   string `db:"content"`
	Priority  string `db:"priority"`
	ZoneID    string `db:"zone_id"`
	SourceKey string `db:"source_key"`
	CreatedAt string `db:"created_at"`
}

type zoneRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Description string `db:"description"`
	Coordinates string `db:"coordinates"`
	CreatedAt   string `db:"created_at"`
}

type scheduledRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Content      string         `db:"content"`
	Priority     string         `db:"priority"`
	ZoneID       string         `db:"zone_id"`
	Recurring    bool           `db:"recurring"`
	Frequency    string         `db:"frequency"`
	ScheduleDate string         `db:"schedule_date"`
	Status       string         `db:"status"`
	LastRunAt    sql.NullString `db:"last_run_at"`
	CreatedAt    string         `db:"created_at"`
}

type profileRow struct {
	UserID    string `db:"user_id"`
	Role      string `db:"role"`
	CreatedAt string `db:"created_at"`
}

// InsertAlert stores one alert, assigning identity and creation time.
// Params: alert payload; SourceKey deduplicates promotion retries.
// Returns: stored alert (existing record when source key already landed).
func (s *SQLiteStore) InsertAlert(ctx context.Context, alert domain.Alert) (domain.Alert, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("begin insert alert: %w", err)
	}
	defer tx.Rollback()

	if alert.SourceKey != "" {
		var existing alertRow
		err := tx.GetContext(ctx, &existing,
			"SELECT * FROM alerts WHERE source_key = ?", alert.SourceKey)
		if err == nil {
			return decodeAlertRow(existing)
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return domain.Alert{}, fmt.Errorf("check alert source key: %w", err)
		}
	}

	alert.ID = uuid.NewString()
	alert.CreatedAt = s.now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO alerts (id, title, content, priority, zone_id, source_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		alert.ID, alert.Title, alert.Content, string(alert.Priority),
		alert.ZoneID, alert.SourceKey, encodeTime(alert.CreatedAt))
	if err != nil {
		if existing, found := s.alertBySourceKey(ctx, alert.SourceKey); found {
			return existing, nil
		}
		return domain.Alert{}, fmt.Errorf("insert alert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		if existing, found := s.alertBySourceKey(ctx, alert.SourceKey); found {
			return existing, nil
		}
		return domain.Alert{}, fmt.Errorf("commit insert alert: %w", err)
	}
	return alert, nil
}

// alertBySourceKey looks up a deduplicated alert after a failed insert.
// A concurrent writer can land the same source key between the dedup check
// and the insert; the unique index then rejects our row, and the winner's
// record is the correct result.
// Params: source key, possibly empty.
// Returns: existing alert and true when the key is already stored.
func (s *SQLiteStore) alertBySourceKey(ctx context.Context, sourceKey string) (domain.Alert, bool) {
	if sourceKey == "" {
		return domain.Alert{}, false
	}
	var row alertRow
	if err := s.db.GetContext(ctx, &row,
		"SELECT * FROM alerts WHERE source_key = ?", sourceKey); err != nil {
		return domain.Alert{}, false
	}
	alert, err := decodeAlertRow(row)
	if err != nil {
		return domain.Alert{}, false
	}
	return alert, true
}

// ListAlerts returns alerts newest-first with optional zone filter.
// Params: filter with optional zone id.
// Returns: matching alerts ordered by creation, newest first.
func (s *SQLiteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]domain.Alert, error) {
	query := "SELECT * FROM alerts ORDER BY created_at DESC, id DESC"
	args := []any{}
	if filter.ZoneID != "" {
		query = "SELECT * FROM alerts WHERE zone_id = ? ORDER BY created_at DESC, id DESC"
		args = append(args, filter.ZoneID)
	}

	var rows []alertRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	out := make([]domain.Alert, 0, len(rows))
	for _, row := range rows {
		alert, err := decodeAlertRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, alert)
	}
	return out, nil
}

// InsertZone stores one zone, assigning identity and creation time.
// Params: zone payload.
// Returns: stored zone record.
func (s *SQLiteStore) InsertZone(ctx context.Context, zone domain.Zone) (domain.Zone, error) {
	coordinates, err := json.Marshal(zone.Coordinates)
	if err != nil {
		return domain.Zone{}, fmt.Errorf("encode zone coordinates: %w", err)
	}

	zone.ID = uuid.NewString()
	zone.CreatedAt = s.now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO zones (id, name, description, coordinates, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		zone.ID, zone.Name, zone.Description, string(coordinates), encodeTime(zone.CreatedAt))
	if err != nil {
		return domain.Zone{}, fmt.Errorf("insert zone: %w", err)
	}
	return zone, nil
}

// ListZones returns zones newest-first.
// Params: none.
// Returns: all zones ordered by creation, newest first.
func (s *SQLiteStore) ListZones(ctx context.Context) ([]domain.Zone, error) {
	var rows []zoneRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM zones ORDER BY created_at DESC, id DESC")
	if err != nil {
		return nil, fmt.Errorf("list zones: %w", err)
	}

	out := make([]domain.Zone, 0, len(rows))
	for _, row := range rows {
		zone, err := decodeZoneRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, zone)
	}
	return out, nil
}

// InsertScheduledAlert stores one scheduled alert in pending status.
// Params: scheduled alert payload.
// Returns: stored entry with assigned identity.
func (s *SQLiteStore) InsertScheduledAlert(ctx context.Context, entry domain.ScheduledAlert) (domain.ScheduledAlert, error) {
	entry.ID = uuid.NewString()
	entry.CreatedAt = s.now()
	if entry.Status == "" {
		entry.Status = domain.SchedulePending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduled_alerts
			(id, title, content, priority, zone_id, recurring, frequency, schedule_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Title, entry.Content, string(entry.Priority), entry.ZoneID,
		entry.Recurring, string(entry.Frequency), encodeTime(entry.ScheduleDate),
		string(entry.Status), encodeTime(entry.CreatedAt))
	if err != nil {
		return domain.ScheduledAlert{}, fmt.Errorf("insert scheduled alert: %w", err)
	}
	return entry, nil
}

// ListScheduledAlerts returns all scheduled alerts ordered by due time.
// Params: none.
// Returns: entries ordered by schedule date ascending.
func (s *SQLiteStore) ListScheduledAlerts(ctx context.Context) ([]domain.ScheduledAlert, error) {
	var rows []scheduledRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM scheduled_alerts ORDER BY schedule_date ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("list scheduled alerts: %w", err)
	}
	return decodeScheduledRows(rows)
}

// ListDueScheduledAlerts returns pending entries due at or before now.
// Params: reference timestamp.
// Returns: due entries ordered by schedule date ascending (earliest first).
func (s *SQLiteStore) ListDueScheduledAlerts(ctx context.Context, now time.Time) ([]domain.ScheduledAlert, error) {
	var rows []scheduledRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM scheduled_alerts
		WHERE status = ? AND schedule_date <= ?
		ORDER BY schedule_date ASC, id ASC`,
		string(domain.SchedulePending), encodeTime(now))
	if err != nil {
		return nil, fmt.Errorf("list due scheduled alerts: %w", err)
	}
	return decodeScheduledRows(rows)
}

// TransitionScheduledAlert applies one conditional lifecycle transition.
// Params: entry id and update payload.
// Returns: ErrNotFound for unknown id; ErrConflict when entry is no longer pending.
func (s *SQLiteStore) TransitionScheduledAlert(ctx context.Context, id string, update ScheduleUpdate) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE scheduled_alerts
		SET status = ?, last_run_at = ?, schedule_date = COALESCE(?, schedule_date)
		WHERE id = ? AND status = ?`,
		string(update.Status), encodeTime(update.LastRunAt),
		encodeOptionalTime(update.ScheduleDate), id, string(domain.SchedulePending))
	if err != nil {
		return fmt.Errorf("transition scheduled alert: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}

	// The affected-row count is the conditional-update success signal; zero
	// means either an unknown id or a row another writer already claimed.
	var exists int
	err = s.db.GetContext(ctx, &exists,
		"SELECT COUNT(1) FROM scheduled_alerts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("check scheduled alert: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

// GetUserProfile returns profile by user id.
// Params: user id key.
// Returns: stored profile or ErrNotFound.
func (s *SQLiteStore) GetUserProfile(ctx context.Context, userID string) (domain.UserProfile, error) {
	var row profileRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM user_profiles WHERE user_id = ?", userID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.UserProfile{}, ErrNotFound
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("get user profile: %w", err)
	}
	return decodeProfileRow(row)
}

// UpsertUserProfile creates or replaces one profile row.
// Params: profile payload keyed by user id.
// Returns: stored profile.
func (s *SQLiteStore) UpsertUserProfile(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	profile.CreatedAt = s.now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, role, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET role = excluded.role`,
		profile.UserID, string(profile.Role), encodeTime(profile.CreatedAt))
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("upsert user profile: %w", err)
	}
	return profile, nil
}

// ListUserProfiles returns all profiles ordered by user id.
// Params: none.
// Returns: deterministic profile listing.
func (s *SQLiteStore) ListUserProfiles(ctx context.Context) ([]domain.UserProfile, error) {
	var rows []profileRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM user_profiles ORDER BY user_id ASC")
	if err != nil {
		return nil, fmt.Errorf("list user profiles: %w", err)
	}

	out := make([]domain.UserProfile, 0, len(rows))
	for _, row := range rows {
		profile, err := decodeProfileRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, profile)
	}
	return out, nil
}

// Close closes the underlying database connection.
// Params: none.
// Returns: close error.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// encodeTime renders timestamps as sortable RFC3339 text.
// Params: timestamp value.
// Returns: UTC RFC3339Nano string.
func encodeTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

// encodeOptionalTime renders optional timestamps for COALESCE updates.
// Params: optional timestamp pointer.
// Returns: encoded string or nil.
func encodeOptionalTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return encodeTime(*value)
}

// decodeTime parses stored RFC3339 text back into time.
// Params: encoded timestamp string.
// Returns: parsed UTC time or decode error.
func decodeTime(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode stored timestamp %q: %w", value, err)
	}
	return parsed, nil
}

func decodeAlertRow(row alertRow) (domain.Alert, error) {
	createdAt, err := decodeTime(row.CreatedAt)
	if err != nil {
		return domain.Alert{}, err
	}
	return domain.Alert{
		ID:        row.ID,
		Title:     row.Title,
		Content:   row.Content,
		Priority:  domain.Priority(row.Priority),
		ZoneID:    row.ZoneID,
		SourceKey: row.SourceKey,
		CreatedAt: createdAt,
	}, nil
}

func decodeZoneRow(row zoneRow) (domain.Zone, error) {
	createdAt, err := decodeTime(row.CreatedAt)
	if err != nil {
		return domain.Zone{}, err
	}
	var coordinates [][2]float64
	if err := json.Unmarshal([]byte(row.Coordinates), &coordinates); err != nil {
		return domain.Zone{}, fmt.Errorf("decode zone coordinates: %w", err)
	}
	return domain.Zone{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Coordinates: coordinates,
		CreatedAt:   createdAt,
	}, nil
}

func decodeScheduledRows(rows []scheduledRow) ([]domain.ScheduledAlert, error) {
	out := make([]domain.ScheduledAlert, 0, len(rows))
	for _, row := range rows {
		entry, err := decodeScheduledRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodeScheduledRow(row scheduledRow) (domain.ScheduledAlert, error) {
	scheduleDate, err := decodeTime(row.ScheduleDate)
	if err != nil {
		return domain.ScheduledAlert{}, err
	}
	createdAt, err := decodeTime(row.CreatedAt)
	if err != nil {
		return domain.ScheduledAlert{}, err
	}
	entry := domain.ScheduledAlert{
		ID:           row.ID,
		Title:        row.Title,
		Content:      row.Content,
		Priority:     domain.Priority(row.Priority),
		ZoneID:       row.ZoneID,
		Recurring:    row.Recurring,
		Frequency:    domain.Frequency(row.Frequency),
		ScheduleDate: scheduleDate,
		Status:       domain.ScheduleStatus(row.Status),
		CreatedAt:    createdAt,
	}
	if row.LastRunAt.Valid {
		lastRun, err := decodeTime(row.LastRunAt.String)
		if err != nil {
			return domain.ScheduledAlert{}, err
		}
		entry.LastRunAt = &lastRun
	}
	return entry, nil
}

func decodeProfileRow(row profileRow) (domain.UserProfile, error) {
	createdAt, err := decodeTime(row.CreatedAt)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return domain.UserProfile{
		UserID:    row.UserID,
		Role:      domain.Role(row.Role),
		CreatedAt: createdAt,
	}, nil
}
