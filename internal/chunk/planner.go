// Package chunk divides a media duration into bounded transcription windows.
package chunk

import (
	"errors"
	"fmt"
	"math"
)

// DefaultMaxWindow is the default window length in seconds.
const DefaultMaxWindow = 90.0

// Epsilon absorbs floating-point drift at the end of the media.
const Epsilon = 0.01

// ErrInvalidPlan is returned for durations or window sizes that cannot be planned.
var ErrInvalidPlan = errors.New("invalid chunk plan")

// Window is one time slice of a media file.
type Window struct {
	Index         int
	Start         float64
	Length        float64
	TargetPercent float64
}

// End returns the window end offset in seconds.
func (w Window) End() float64 {
	return w.Start + w.Length
}

// Planner yields consecutive windows for a single file. It is consumed once.
type Planner struct {
	total     float64
	maxWindow float64
	index     int
	done      bool
}

// NewPlanner validates the inputs and returns a planner positioned at zero.
func NewPlanner(total, maxWindow float64) (*Planner, error) {
	if !finite(total) || !finite(maxWindow) {
		return nil, fmt.Errorf("%w: non-finite input (total=%v window=%v)", ErrInvalidPlan, total, maxWindow)
	}
	if maxWindow <= 0 {
		return nil, fmt.Errorf("%w: window must be positive, got %v", ErrInvalidPlan, maxWindow)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive, got %v", ErrInvalidPlan, total)
	}
	return &Planner{total: total, maxWindow: maxWindow}, nil
}

// Next returns the following window, or false once the media is covered.
//
// Starts are computed as index*maxWindow so they never drift. The window whose
// end reaches total-Epsilon is the last one; its end is pinned to total so the
// lengths sum to the duration and its target is exactly 100.
func (p *Planner) Next() (Window, bool) {
	if p == nil || p.done {
		return Window{}, false
	}

	start := float64(p.index) * p.maxWindow
	end := start + p.maxWindow
	last := end >= p.total-Epsilon
	if last {
		end = p.total
	}

	w := Window{
		Index:         p.index,
		Start:         start,
		Length:        p.maxWindow,
		TargetPercent: end / p.total * 100,
	}
	if last {
		w.Length = end - start
		w.TargetPercent = 100
		p.done = true
	}
	p.index++
	return w, true
}

// Count returns how many windows a plan for total/maxWindow yields.
func Count(total, maxWindow float64) int {
	p, err := NewPlanner(total, maxWindow)
	if err != nil {
		return 0
	}
	n := 0
	for _, ok := p.Next(); ok; _, ok = p.Next() {
		n++
	}
	return n
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
