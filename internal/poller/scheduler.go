package poller

import (
	"sync/atomic"
	"time"
)

const (
	// DefaultBaseInterval is the poll cadence while the host is visible.
	DefaultBaseInterval = time.Second

	// hiddenFloor is the minimum cadence while the host is hidden.
	hiddenFloor = 5 * time.Second
)

// EffectiveInterval is the visibility cadence rule: the scheduling
// interval is never lowered below the configured base, and is raised to
// at least the hidden floor while the host is hidden.
func EffectiveInterval(hidden bool, base time.Duration) time.Duration {
	if hidden && base < hiddenFloor {
		return hiddenFloor
	}
	return base
}

// Scheduler owns the current poll interval. Visibility changes apply to
// subsequent ticks only; an already-armed timer is not rescheduled.
type Scheduler struct {
	base   time.Duration
	hidden atomic.Bool
}

// NewScheduler creates a Scheduler with the given base interval.
func NewScheduler(base time.Duration) *Scheduler {
	if base <= 0 {
		base = DefaultBaseInterval
	}
	return &Scheduler{base: base}
}

// SetHidden records the host visibility.
func (s *Scheduler) SetHidden(hidden bool) {
	s.hidden.Store(hidden)
}

// Base returns the configured base interval.
func (s *Scheduler) Base() time.Duration {
	return s.base
}

// Interval returns the interval for the next tick.
func (s *Scheduler) Interval() time.Duration {
	return EffectiveInterval(s.hidden.Load(), s.base)
}
