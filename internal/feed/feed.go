// Package feed publishes change-notification events for dashboard
// consumers. Events are best-effort: store writes always come first and
// a publish failure never fails the originating operation.
package feed

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"
)

// EventType identifies one kind of change event.
// Params: record class plus lifecycle verb constants.
// Returns: routing suffix under the feed subject prefix.
type EventType string

const (
	// EventAlertCreated fires when an alert lands, whether posted or promoted.
	EventAlertCreated EventType = "alert.created"
	// EventZoneCreated fires when a zone is created.
	EventZoneCreated EventType = "zone.created"
	// EventScheduleCreated fires when a scheduled alert is queued.
	EventScheduleCreated EventType = "scheduled.created"
	// EventScheduleUpdated fires on dispatcher lifecycle transitions.
	EventScheduleUpdated EventType = "scheduled.updated"
)

// Event is one change notification published to feed subscribers.
// Params: event classification, affected record id, and payload snapshot.
// Returns: serialized feed unit.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	RecordID  string    `json:"record_id"`
	ZoneID    string    `json:"zone_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BuildEventID creates deterministic id for one change event.
// Params: event type, affected record id, and event timestamp.
// Returns: stable SHA1-based id string used for broker-side deduplication.
func BuildEventID(eventType EventType, recordID string, at time.Time) string {
	raw := fmt.Sprintf("%s|%s|%d", eventType, recordID, at.UnixNano())
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Producer publishes change events.
// Params: context and event payload.
// Returns: publish error.
type Producer interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NoopProducer drops every event; used in single-instance mode.
// Params: none.
// Returns: producer that never fails.
type NoopProducer struct{}

// Publish discards the event.
// Params: context and event payload (both ignored).
// Returns: nil.
func (NoopProducer) Publish(context.Context, Event) error { return nil }

// Close releases nothing.
// Params: none.
// Returns: nil.
func (NoopProducer) Close() error { return nil }
