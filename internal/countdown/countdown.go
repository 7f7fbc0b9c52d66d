// Package countdown implements the decrementing test clock.
package countdown

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Option configures a Countdown.
type Option func(*Countdown)

// WithClock swaps the time source; tests pass a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Countdown) { c.clock = clock }
}

// OnTick registers the observer that receives every remaining-seconds value.
func OnTick(f func(remaining int)) Option {
	return func(c *Countdown) { c.onTick = f }
}

// OnExpire sets the initial expiry callback.
func OnExpire(f func()) Option {
	return func(c *Countdown) { c.SetOnExpire(f) }
}

// OnBand registers the warning observer, called once per band crossing.
func OnBand(f func(Band)) Option {
	return func(c *Countdown) { c.onBand = f }
}

// WithAutoStart starts the clock on construction and after every Reset.
func WithAutoStart() Option {
	return func(c *Countdown) { c.autoStart = true }
}

// Countdown decrements a whole-second budget once per elapsed second and
// fires its expiry callback exactly once when it reaches zero.
//
// The expiry callback is kept in its own cell and read when it fires, so
// replacing it never touches the ticking schedule.
type Countdown struct {
	clock     clockwork.Clock
	autoStart bool
	onTick    func(int)
	onBand    func(Band)
	onExpire  atomic.Pointer[func()]

	mu        sync.Mutex
	remaining int
	running   bool
	expired   bool
	stopped   bool
	gen       uint64
	ticker    clockwork.Ticker
	done      chan struct{}
	bands     BandTracker
}

// New builds a countdown of seconds (negative values are treated as 0) and
// reports the initial value to the tick observer.
func New(seconds int, opts ...Option) *Countdown {
	if seconds < 0 {
		seconds = 0
	}
	c := &Countdown{
		clock:     clockwork.NewRealClock(),
		remaining: seconds,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.mu.Lock()
	band, fire := c.bands.Observe(seconds)
	c.mu.Unlock()
	c.report(seconds, band, fire)

	if c.autoStart {
		c.Start()
	}
	return c
}

// SetOnExpire replaces the expiry callback without restarting the clock.
func (c *Countdown) SetOnExpire(f func()) {
	c.onExpire.Store(&f)
}

// Remaining returns the seconds left.
func (c *Countdown) Remaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remaining
}

// Running reports whether the clock is currently decrementing.
func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Expired reports whether the clock reached zero since the last Reset.
func (c *Countdown) Expired() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expired
}

// Start begins decrementing. A countdown already at zero expires immediately.
// Start does nothing after Stop.
func (c *Countdown) Start() {
	c.mu.Lock()
	if c.running || c.expired || c.stopped {
		c.mu.Unlock()
		return
	}
	if c.remaining == 0 {
		c.expired = true
		c.mu.Unlock()
		c.fireExpire()
		return
	}
	c.running = true
	c.gen++
	c.ticker = c.clock.NewTicker(time.Second)
	c.done = make(chan struct{})
	go c.loop(c.gen, c.ticker, c.done)
	c.mu.Unlock()
}

// Resume continues a paused countdown.
func (c *Countdown) Resume() {
	c.Start()
}

// Pause suspends decrementing, keeping the remaining value.
func (c *Countdown) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.haltLocked()
}

// Stop halts the clock for good; only Reset brings it back.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped = true
	c.haltLocked()
}

// Reset cancels any pending decrement, sets a new budget and re-arms band
// warnings. The clock restarts only when auto-start is configured.
func (c *Countdown) Reset(seconds int) {
	if seconds < 0 {
		seconds = 0
	}
	c.mu.Lock()
	c.haltLocked()
	c.gen++
	c.remaining = seconds
	c.expired = false
	c.stopped = false
	c.bands.Reset()
	band, fire := c.bands.Observe(seconds)
	c.mu.Unlock()

	c.report(seconds, band, fire)
	if c.autoStart {
		c.Start()
	}
}

func (c *Countdown) haltLocked() {
	if !c.running {
		return
	}
	c.running = false
	c.ticker.Stop()
	close(c.done)
	c.ticker = nil
	c.done = nil
}

func (c *Countdown) loop(gen uint64, ticker clockwork.Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-ticker.Chan():
			if !c.step(gen) {
				return
			}
		}
	}
}

// step applies one decrement and reports whether the loop should continue.
func (c *Countdown) step(gen uint64) bool {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return false
	}
	c.remaining--
	remaining := c.remaining
	expiredNow := remaining == 0
	if expiredNow {
		c.expired = true
		c.haltLocked()
	}
	band, fire := c.bands.Observe(remaining)
	c.mu.Unlock()

	c.report(remaining, band, fire)
	if expiredNow {
		c.fireExpire()
	}
	return !expiredNow
}

func (c *Countdown) report(remaining int, band Band, fire bool) {
	if c.onTick != nil {
		c.onTick(remaining)
	}
	if fire && c.onBand != nil {
		c.onBand(band)
	}
}

func (c *Countdown) fireExpire() {
	if f := c.onExpire.Load(); f != nil && *f != nil {
		(*f)()
	}
}
