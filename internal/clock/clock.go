package clock

import "time"

// Clock provides current time abstraction for deterministic tests.
// Params: none.
// Returns: current wall-clock time in the workshop time zone.
type Clock interface {
	Now() time.Time
}

// RealClock reads current time from system clock in one location.
// Params: Location selects the calendar used for "today"; nil means local time.
// Returns: current timestamp bound to the configured location.
type RealClock struct {
	Location *time.Location
}

// Now returns current time in the configured location.
// Params: none.
// Returns: current timestamp.
func (c RealClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// Fixed is a clock frozen at one instant.
// Params: underlying timestamp.
// Returns: the same timestamp on every call.
type Fixed time.Time

// Now returns the frozen timestamp.
// Params: none.
// Returns: fixed timestamp.
func (f Fixed) Now() time.Time {
	return time.Time(f)
}
