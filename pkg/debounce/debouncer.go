package debounce

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer coalesces triggers into a single call of fn. Every Trigger
// replaces the pending timer, so fn runs once per quiet window with
// whatever state the caller has stored by then.
type Debouncer struct {
	clock clock.Clock
	fn    func()

	mu         sync.Mutex
	timer      *clock.Timer
	generation uint64
	stopped    bool
}

// NewDebouncer creates a debouncer on the given clock. A nil clock uses the
// wall clock.
func NewDebouncer(clk clock.Clock, fn func()) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{
		clock: clk,
		fn:    fn,
	}
}

// Trigger schedules fn after window, dropping any pending schedule.
func (d *Debouncer) Trigger(window time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopLocked()
	d.generation++
	gen := d.generation
	d.timer = d.clock.AfterFunc(window, func() {
		d.fire(gen)
	})
}

// Flush runs fn now if a call is pending and reports whether it ran.
func (d *Debouncer) Flush() bool {
	d.mu.Lock()
	if d.stopped || d.timer == nil {
		d.mu.Unlock()
		return false
	}
	d.stopLocked()
	d.generation++
	d.mu.Unlock()

	d.fn()
	return true
}

// Cancel drops the pending call, if any.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.generation++
}

// Stop cancels the pending call and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.generation++
	d.stopped = true
}

// Pending reports whether a call is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	// A timer that lost the race with Trigger, Flush or Stop is stale.
	if d.stopped || gen != d.generation {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fn()
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
