package resolve

import (
	"sync"
	"time"
)

// Countdown is a single-slot cancellable timer. At most one instance is
// outstanding: arming cancels any prior instance, and a fired callback is
// suppressed unless it is still the current generation — a stale timer firing
// after its session was cleared by a later event must be a no-op, not an
// error.
type Countdown struct {
	mu    sync.Mutex
	gen   uint64
	timer *time.Timer
}

// Arm schedules fn to run after d, cancelling any previously armed instance.
// fn runs on a timer goroutine; callers that mutate shared state must guard
// it themselves, typically by re-checking their own session state first.
func (c *Countdown) Arm(d time.Duration, fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancelLocked()
	gen := c.gen
	c.timer = time.AfterFunc(d, func() {
		c.mu.Lock()
		if c.gen != gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		c.mu.Unlock()
		fn()
	})
}

// Cancel synchronously invalidates any armed instance. A callback already
// past its generation check may still be running; callers relying on strict
// ordering must hold their own lock across Cancel and the state they clear.
func (c *Countdown) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelLocked()
}

func (c *Countdown) cancelLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// Armed reports whether an instance is currently outstanding.
func (c *Countdown) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}
