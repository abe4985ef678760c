package app

import (
	"sync"
	"time"
)

// Countdown is a restartable one-unit-per-interval countdown. A session runs
// two of these: a per-question timer and a whole-quiz timer.
//
// At most one tick source is ever live per instance: every Start bumps a
// generation counter, and a ticker goroutine from a previous generation stops
// itself on its next tick. This is what prevents the double-decrement bug of
// restarting a timer without cancelling its predecessor.
type Countdown struct {
	interval time.Duration

	mu        sync.Mutex
	remaining int
	active    bool
	gen       uint64
	onTick    func(remaining int)
	onExpire  func()
}

// NewCountdown creates a countdown ticking once per interval. A non-positive
// interval falls back to one second.
func NewCountdown(interval time.Duration) *Countdown {
	if interval <= 0 {
		interval = time.Second
	}
	return &Countdown{interval: interval}
}

// Start begins a fresh countdown of the given number of ticks, replacing any
// previous one. onExpire fires exactly once when the count reaches zero.
// Starting with zero ticks expires immediately.
func (c *Countdown) Start(ticks int, onTick func(remaining int), onExpire func()) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.remaining = ticks
	c.active = ticks > 0
	c.onTick = onTick
	c.onExpire = onExpire
	c.mu.Unlock()

	if ticks <= 0 {
		if onExpire != nil {
			onExpire()
		}
		return
	}
	go c.run(gen)
}

// Stop deactivates the countdown. The ticker goroutine, if any, exits on its
// next tick. Safe to call multiple times.
func (c *Countdown) Stop() {
	c.mu.Lock()
	c.gen++
	c.active = false
	c.mu.Unlock()
}

// Remaining reports the ticks left on the current countdown.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Active reports whether the countdown is still ticking.
func (c *Countdown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Countdown) run(gen uint64) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for range ticker.C {
		if !c.tick(gen) {
			return
		}
	}
}

// tick applies exactly one unit of elapsed time and reports whether ticking
// should continue. A stale generation or a stopped countdown is a no-op.
// Callbacks run outside the lock so they may re-enter the countdown.
func (c *Countdown) tick(gen uint64) bool {
	c.mu.Lock()
	if gen != c.gen || !c.active {
		c.mu.Unlock()
		return false
	}
	c.remaining--
	remaining := c.remaining
	expired := remaining <= 0
	if expired {
		c.active = false
	}
	onTick, onExpire := c.onTick, c.onExpire
	c.mu.Unlock()

	if onTick != nil {
		onTick(remaining)
	}
	if expired {
		if onExpire != nil {
			onExpire()
		}
		return false
	}
	return true
}
