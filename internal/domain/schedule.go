package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Frequency is recurrence period for scheduled alerts.
// Params: daily/weekly/monthly constants.
// Returns: recurrence step for occurrence advancement.
type Frequency string

const (
	// FrequencyDaily repeats every 24 hours.
	FrequencyDaily Frequency = "daily"
	// FrequencyWeekly repeats every 7 days.
	FrequencyWeekly Frequency = "weekly"
	// FrequencyMonthly repeats on the same day-of-month, clamped to month length.
	FrequencyMonthly Frequency = "monthly"
)

// ParseFrequency normalizes and validates frequency value.
// Params: raw frequency string.
// Returns: frequency constant or error for unknown values.
func ParseFrequency(value string) (Frequency, error) {
	switch Frequency(strings.ToLower(strings.TrimSpace(value))) {
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly:
		return FrequencyWeekly, nil
	case FrequencyMonthly:
		return FrequencyMonthly, nil
	default:
		return "", fmt.Errorf("unsupported frequency %q", value)
	}
}

// ScheduleStatus is lifecycle state of one scheduled alert.
// Params: pending/completed/failed constants.
// Returns: dispatcher-owned state value.
type ScheduleStatus string

const (
	// SchedulePending marks entries eligible for future promotion.
	SchedulePending ScheduleStatus = "pending"
	// ScheduleCompleted marks promoted non-recurring entries (terminal).
	ScheduleCompleted ScheduleStatus = "completed"
	// ScheduleFailed marks entries whose promotion failed (terminal, no retry).
	ScheduleFailed ScheduleStatus = "failed"
)

// ScheduledAlert is one queued alert awaiting promotion.
// Params: alert content, due time, recurrence settings, and dispatcher state.
// Returns: record mutated only by the dispatcher after creation.
type ScheduledAlert struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Priority     Priority       `json:"priority"`
	ZoneID       string         `json:"zone_id,omitempty"`
	Recurring    bool           `json:"recurring"`
	Frequency    Frequency      `json:"frequency,omitempty"`
	ScheduleDate time.Time      `json:"schedule_date"`
	Status       ScheduleStatus `json:"status"`
	LastRunAt    *time.Time     `json:"last_run_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate checks user-provided scheduled alert fields.
// Params: none.
// Returns: validation error for content, due time, or recurrence problems.
func (s ScheduledAlert) Validate() error {
	if strings.TrimSpace(s.Title) == "" {
		return errors.New("scheduled alert title is required")
	}
	if strings.TrimSpace(s.Content) == "" {
		return errors.New("scheduled alert content is required")
	}
	if _, err := ParsePriority(string(s.Priority)); err != nil {
		return err
	}
	if s.ScheduleDate.IsZero() {
		return errors.New("scheduled alert schedule_date is required")
	}
	// frequency is set if and only if the entry is recurring
	if s.Recurring {
		if _, err := ParseFrequency(string(s.Frequency)); err != nil {
			return err
		}
		return nil
	}
	if s.Frequency != "" {
		return errors.New("frequency is only allowed on recurring scheduled alerts")
	}
	return nil
}

// PromotionKey builds idempotency key for one promotion occurrence.
// Params: scheduled alert identity and occurrence due time.
// Returns: stable key stored on the created alert so duplicate ticks no-op.
func (s ScheduledAlert) PromotionKey() string {
	return s.ID + "@" + s.ScheduleDate.UTC().Format(time.RFC3339)
}

// NextOccurrence advances due time by one recurrence step.
// Params: current due time and recurrence frequency.
// Returns: strictly later due time; monthly clamps to the shorter month end.
func NextOccurrence(current time.Time, frequency Frequency) time.Time {
	switch frequency {
	case FrequencyWeekly:
		return current.Add(7 * 24 * time.Hour)
	case FrequencyMonthly:
		year, month, day := current.Date()
		hour, minute, second := current.Clock()
		lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, current.Location()).Day()
		if day > lastDay {
			day = lastDay
		}
		return time.Date(year, month+1, day, hour, minute, second, current.Nanosecond(), current.Location())
	default:
		return current.Add(24 * time.Hour)
	}
}
