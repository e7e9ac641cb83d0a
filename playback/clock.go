package playback

import (
	"sync"
	"time"

	"golang.org/x/exp/slices"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock is the only scheduling primitive the engine uses.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock schedules on the runtime timers.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// ManualClock is a virtual clock. Time only moves on Advance, which runs
// every callback that falls due, in due order, on the calling goroutine.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers []*manualTimer
}

type manualTimer struct {
	clock *ManualClock
	id    uint64
	when  time.Time
	f     func()
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.nextID++
	t := &manualTimer{clock: c, id: c.nextID, when: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	c := t.clock
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := slices.Index(c.timers, t)
	if idx < 0 {
		return false
	}
	c.timers = slices.Delete(c.timers, idx, idx+1)
	return true
}

// Advance moves the clock forward by d. Timers created by callbacks are
// run too if they fall due before the new time.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	for {
		idx := -1
		for i, t := range c.timers {
			if t.when.After(target) {
				continue
			}
			if idx < 0 || t.when.Before(c.timers[idx].when) ||
				(t.when.Equal(c.timers[idx].when) && t.id < c.timers[idx].id) {
				idx = i
			}
		}
		if idx < 0 {
			break
		}
		t := c.timers[idx]
		c.timers = slices.Delete(c.timers, idx, idx+1)
		if t.when.After(c.now) {
			c.now = t.when
		}
		c.mu.Unlock()
		t.f()
		c.mu.Lock()
	}
	c.now = target
	c.mu.Unlock()
}

// Pending returns the number of scheduled, not yet fired timers.
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}
