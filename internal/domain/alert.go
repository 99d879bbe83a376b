package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority ranks alert severity.
// Params: low/medium/high constants.
// Returns: ordering hint for dashboards and broadcast formatting.
type Priority string

const (
	// PriorityLow marks informational alerts.
	PriorityLow Priority = "low"
	// PriorityMedium marks alerts that need operator attention.
	PriorityMedium Priority = "medium"
	// PriorityHigh marks alerts that require immediate action.
	PriorityHigh Priority = "high"
)

// ParsePriority normalizes and validates priority value.
// Params: raw priority string.
// Returns: priority constant or error for unknown values.
func ParsePriority(value string) (Priority, error) {
	switch Priority(strings.ToLower(strings.TrimSpace(value))) {
	case PriorityLow:
		return PriorityLow, nil
	case PriorityMedium:
		return PriorityMedium, nil
	case PriorityHigh:
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("unsupported priority %q", value)
	}
}

// Alert is one published alert record.
// Params: identity, content fields, optional zone binding, and creation time.
// Returns: immutable record after store insertion.
type Alert struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Priority  Priority  `json:"priority"`
	ZoneID    string    `json:"zone_id,omitempty"`
	SourceKey string    `json:"source_key,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks user-provided alert fields before insertion.
// Params: none.
// Returns: validation error for empty or malformed fields.
func (a Alert) Validate() error {
	if strings.TrimSpace(a.Title) == "" {
		return errors.New("alert title is required")
	}
	if strings.TrimSpace(a.Content) == "" {
		return errors.New("alert content is required")
	}
	if _, err := ParsePriority(string(a.Priority)); err != nil {
		return err
	}
	return nil
}

// AlertBroadcast is outbound payload for one published alert.
// Params: alert snapshot plus rendered message and publication time.
// Returns: notification model for channel senders and templates.
type AlertBroadcast struct {
	AlertID   string    `json:"alert_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Priority  Priority  `json:"priority"`
	ZoneID    string    `json:"zone_id,omitempty"`
	Scheduled bool      `json:"scheduled"`
	Message   string    `json:"message,omitempty"`
	Channel   string    `json:"channel,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastFromAlert builds outbound payload from stored alert.
// Params: stored alert, scheduled-promotion flag, and publication time.
// Returns: broadcast model without rendered message.
func BroadcastFromAlert(alert Alert, scheduled bool, at time.Time) AlertBroadcast {
	return AlertBroadcast{
		AlertID:   alert.ID,
		Title:     alert.Title,
		Content:   alert.Content,
		Priority:  alert.Priority,
		ZoneID:    alert.ZoneID,
		Scheduled: scheduled,
		Timestamp: at,
	}
}
