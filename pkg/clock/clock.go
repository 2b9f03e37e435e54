// Package clock provides a deterministic clock abstraction plus the UTC
// calendar arithmetic used by the analytics and sync pipelines.
//
// GUARDRAIL: Core logic packages MUST NOT call time.Now() directly.
// Inject a Clock so tests can pin time and period math stays reproducible.
package clock

import "time"

// Clock provides the current time.
// All core logic should depend on this interface, not time.Now().
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual system time.
// Use only at application entry points (cmd/*).
type RealClock struct{}

// Now returns the current system time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns a fixed time.
// Use for deterministic testing.
type FixedClock struct {
	T time.Time
}

// Now returns the fixed time.
func (c FixedClock) Now() time.Time {
	return c.T
}

// FuncClock wraps a function as a Clock.
// Useful for incremental time or custom test scenarios.
type FuncClock func() time.Time

// Now calls the wrapped function.
func (f FuncClock) Now() time.Time {
	return f()
}

// NewReal returns a Clock that uses the real system time.
func NewReal() Clock {
	return RealClock{}
}

// NewFixed returns a Clock that always returns the given time.
func NewFixed(t time.Time) Clock {
	return FixedClock{T: t}
}

// NewFixedUnix returns a Clock pinned to a unix-second timestamp.
func NewFixedUnix(ts int64) Clock {
	return FixedClock{T: time.Unix(ts, 0).UTC()}
}

// NewFunc returns a Clock backed by a custom function.
func NewFunc(f func() time.Time) Clock {
	return FuncClock(f)
}

// Verify interface compliance at compile time.
var (
	_ Clock = RealClock{}
	_ Clock = FixedClock{}
	_ Clock = FuncClock(nil)
)
