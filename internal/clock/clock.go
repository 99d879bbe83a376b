package clock

import "time"

// Clock abstracts wall-clock reads for deterministic tests.
// Params: none.
// Returns: current time on demand.
type Clock interface {
	Now() time.Time
}

// RealClock reads system time in UTC.
// Params: none.
// Returns: current UTC timestamp.
type RealClock struct{}

// Now returns current UTC time.
// Params: none.
// Returns: current UTC timestamp.
func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock returns one preset timestamp on every read.
// Params: frozen time value.
// Returns: deterministic clock for tests.
type FixedClock struct {
	At time.Time
}

// Now returns the preset timestamp.
// Params: none.
// Returns: frozen time value.
func (c FixedClock) Now() time.Time {
	return c.At
}
