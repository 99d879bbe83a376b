package domain

import (
	"testing"
	"time"
)

func TestNextOccurrenceDailyAndWeekly(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, time.March, 10, 8, 30, 0, 0, time.UTC)
	if got := NextOccurrence(current, FrequencyDaily); !got.Equal(current.Add(24 * time.Hour)) {
		t.Fatalf("daily occurrence mismatch: %v", got)
	}
	if got := NextOccurrence(current, FrequencyWeekly); !got.Equal(current.Add(7 * 24 * time.Hour)) {
		t.Fatalf("weekly occurrence mismatch: %v", got)
	}
}

func TestNextOccurrenceMonthlyClampsToShortMonth(t *testing.T) {
	t.Parallel()

	jan31 := time.Date(2025, time.January, 31, 9, 0, 0, 0, time.UTC)
	got := NextOccurrence(jan31, FrequencyMonthly)
	want := time.Date(2025, time.February, 28, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected clamp to %v, got %v", want, got)
	}

	leapJan := time.Date(2024, time.January, 31, 9, 0, 0, 0, time.UTC)
	gotLeap := NextOccurrence(leapJan, FrequencyMonthly)
	wantLeap := time.Date(2024, time.February, 29, 9, 0, 0, 0, time.UTC)
	if !gotLeap.Equal(wantLeap) {
		t.Fatalf("expected leap clamp to %v, got %v", wantLeap, gotLeap)
	}
}

func TestNextOccurrenceMonthlyYearRollover(t *testing.T) {
	t.Parallel()

	dec15 := time.Date(2025, time.December, 15, 12, 0, 0, 0, time.UTC)
	got := NextOccurrence(dec15, FrequencyMonthly)
	want := time.Date(2026, time.January, 15, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestNextOccurrenceIsStrictlyLater(t *testing.T) {
	t.Parallel()

	current := time.Date(2025, time.May, 31, 23, 59, 59, 0, time.UTC)
	for _, frequency := range []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly} {
		if got := NextOccurrence(current, frequency); !got.After(current) {
			t.Fatalf("occurrence for %s is not strictly later: %v", frequency, got)
		}
	}
}

func TestScheduledAlertValidateRecurrenceInvariant(t *testing.T) {
	t.Parallel()

	base := ScheduledAlert{
		Title:        "Flood Warning",
		Content:      "River level rising",
		Priority:     PriorityHigh,
		ScheduleDate: time.Date(2025, time.June, 1, 6, 0, 0, 0, time.UTC),
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid non-recurring entry rejected: %v", err)
	}

	recurring := base
	recurring.Recurring = true
	if err := recurring.Validate(); err == nil {
		t.Fatalf("recurring entry without frequency must be rejected")
	}
	recurring.Frequency = FrequencyDaily
	if err := recurring.Validate(); err != nil {
		t.Fatalf("valid recurring entry rejected: %v", err)
	}

	oneShot := base
	oneShot.Frequency = FrequencyWeekly
	if err := oneShot.Validate(); err == nil {
		t.Fatalf("non-recurring entry with frequency must be rejected")
	}
}

func TestScheduledAlertPromotionKeyIsOccurrenceScoped(t *testing.T) {
	t.Parallel()

	entry := ScheduledAlert{
		ID:           "sched-1",
		ScheduleDate: time.Date(2025, time.June, 1, 6, 0, 0, 0, time.UTC),
	}
	first := entry.PromotionKey()
	entry.ScheduleDate = NextOccurrence(entry.ScheduleDate, FrequencyDaily)
	second := entry.PromotionKey()
	if first == second {
		t.Fatalf("promotion keys must differ per occurrence, got %q twice", first)
	}
}
