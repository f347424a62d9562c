package tracker

import (
	"sync"
	"time"
)

// eventClock follows spool event timestamps. Between events it advances
// with the wall clock, so live ticks keep counting. It never moves
// backwards: an event older than the clock leaves it unchanged.
type eventClock struct {
	wall func() time.Time

	mu        sync.Mutex
	synced    bool
	base      time.Time
	appliedAt time.Time
}

func newEventClock(wall func() time.Time) *eventClock {
	now := wall()
	return &eventClock{wall: wall, base: now, appliedAt: now}
}

// Observe moves the clock to an event's timestamp. The first event sets
// the clock outright; later ones only move it forward. It reports false
// when ts is behind the clock and was ignored.
func (c *eventClock) Observe(ts time.Time) bool {
	if ts.IsZero() {
		return true
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.wall()
	if c.synced && ts.Before(c.base.Add(wall.Sub(c.appliedAt))) {
		return false
	}

	c.synced = true
	c.base = ts
	c.appliedAt = wall
	return true
}

// Now implements session.Clock.
func (c *eventClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.base.Add(c.wall().Sub(c.appliedAt))
}
