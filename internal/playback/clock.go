// Package playback schedules decoded AI speech for gapless, click-free
// playback and fans every buffer out to both the listening device and
// the recording mix.
package playback

import (
	"sync"
	"time"
)

// gapEpsilon is the slack before a late start counts as an audible gap.
const gapEpsilon = time.Millisecond

// VirtualClock tracks the next available start time for scheduling.
// Start times are computed from this clock rather than wall-clock sleep,
// so queued buffers are issued back-to-back with no gap even though the
// scheduling loop is sequential.
type VirtualClock struct {
	now func() time.Time

	mu        sync.Mutex
	nextStart time.Time
}

// NewVirtualClock creates a clock. A nil now function means time.Now;
// tests inject their own.
func NewVirtualClock(now func() time.Time) *VirtualClock {
	if now == nil {
		now = time.Now
	}
	return &VirtualClock{now: now}
}

// Reserve computes the start time for a buffer of duration d and
// advances the clock past it. The returned start is never earlier than
// max(now, next start), which is the invariant preventing overlap.
// gapped reports whether playback was not already in progress at the
// start time, meaning a fade-in should mask the discontinuity.
func (c *VirtualClock) Reserve(d time.Duration) (start time.Time, gapped bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	start = c.nextStart
	if start.Before(now) {
		gapped = c.nextStart.IsZero() || now.Sub(c.nextStart) > gapEpsilon
		start = now
	}
	c.nextStart = start.Add(d)
	return start, gapped
}

// NextStart reports the currently reserved horizon.
func (c *VirtualClock) NextStart() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextStart
}

// Reset clears the horizon, e.g. when a session ends.
func (c *VirtualClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextStart = time.Time{}
}
