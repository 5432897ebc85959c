// Package ratelimit throttles log lines for events that can repeat quickly.
package ratelimit

import (
	"sync"
	"time"
)

// Counter counts events and lets one through for logging at most once per
// interval. It is safe for concurrent use.
type Counter struct {
	interval time.Duration

	mu         sync.Mutex
	last       time.Time
	total      uint64
	suppressed uint64
}

// NewCounter returns a Counter. A zero or negative interval never throttles.
func NewCounter(interval time.Duration) *Counter {
	return &Counter{interval: interval}
}

// Allow records an event at now. It returns the running total, how many
// events were held back since the previous allowed one, and whether this
// event should be logged.
func (c *Counter) Allow(now time.Time) (total, suppressed uint64, ok bool) {
	if c == nil {
		return 0, 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.total++
	if c.interval > 0 && !c.last.IsZero() && now.Sub(c.last) < c.interval {
		c.suppressed++
		return c.total, 0, false
	}
	suppressed = c.suppressed
	c.suppressed = 0
	c.last = now
	return c.total, suppressed, true
}
