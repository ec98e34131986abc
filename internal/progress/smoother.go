// Package progress turns run events into smoothed, monotonic progress for a view.
package progress

import "time"

// Mode is the smoothing state.
type Mode string

const (
	ModeIdle       Mode = "idle"
	ModeEasing     Mode = "easing"
	ModeCatchingUp Mode = "catching-up"
)

// Default smoothing rates in percent per second.
const (
	DefaultEaseRate         = 4.0
	DefaultCatchUpRate      = 40.0
	DefaultCatchUpThreshold = 0.5
)

// Smoother moves a displayed percentage toward the latest target.
//
// The display eases toward target at EaseRate. When it trails floor (the last
// confirmed completion point) by more than CatchUpThreshold it switches to
// CatchUpRate and stays there until floor is reached.
type Smoother struct {
	EaseRate         float64
	CatchUpRate      float64
	CatchUpThreshold float64
}

// DefaultSmoother returns the standard rates.
func DefaultSmoother() Smoother {
	return Smoother{
		EaseRate:         DefaultEaseRate,
		CatchUpRate:      DefaultCatchUpRate,
		CatchUpThreshold: DefaultCatchUpThreshold,
	}
}

// Step advances current by dt and returns the new value and mode. It never
// returns less than current and never exceeds max(target, floor) or 100.
func (s Smoother) Step(current, target, floor float64, mode Mode, dt time.Duration) (float64, Mode) {
	target = clamp(target)
	floor = clamp(floor)
	goal := target
	if floor > goal {
		goal = floor
	}
	if current >= goal {
		return current, ModeIdle
	}

	secs := dt.Seconds()
	if secs < 0 {
		secs = 0
	}

	lag := floor - current
	if lag > 0 && (mode == ModeCatchingUp || lag > s.CatchUpThreshold) {
		next := current + s.CatchUpRate*secs
		if next >= floor {
			return settle(floor, goal)
		}
		return next, ModeCatchingUp
	}

	next := current + s.EaseRate*secs
	if next >= goal {
		return goal, ModeIdle
	}
	return next, ModeEasing
}

func settle(value, goal float64) (float64, Mode) {
	if value >= goal {
		return value, ModeIdle
	}
	return value, ModeEasing
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
