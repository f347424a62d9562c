package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventClockMonotonic(t *testing.T) {
	wall := newTestClock()
	c := newEventClock(wall.Now)
	assert.Equal(t, wall.Now(), c.Now())

	t0 := time.Date(2024, 3, 8, 14, 0, 0, 0, time.UTC)
	assert.True(t, c.Observe(t0), "the first event sets the clock even when behind the wall clock")
	assert.Equal(t, t0, c.Now())

	wall.Advance(5 * time.Second)
	assert.Equal(t, t0.Add(5*time.Second), c.Now())

	assert.False(t, c.Observe(t0.Add(2*time.Second)))
	assert.Equal(t, t0.Add(5*time.Second), c.Now())

	assert.True(t, c.Observe(t0.Add(time.Minute)))
	assert.Equal(t, t0.Add(time.Minute), c.Now())

	assert.True(t, c.Observe(time.Time{}))
	assert.Equal(t, t0.Add(time.Minute), c.Now())
}
