// Package debounce delays a save until input has been quiet for a while.
package debounce

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of Trigger calls into one call of fn with the
// latest value. fn is skipped when the value equals the last one it saw.
type Debouncer struct {
	delay time.Duration
	fn    func(string)

	mu      sync.Mutex
	timer   *time.Timer
	pending string
	armed   bool
	gen     uint64
	last    string
	fired   bool
	stopped bool
}

// New creates a Debouncer that calls fn delay after the last Trigger
func New(delay time.Duration, fn func(string)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Trigger records value and restarts the timer
func (d *Debouncer) Trigger(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.pending = value
	d.armed = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush runs a pending call immediately
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop drops any pending call; later Triggers are ignored
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.armed = false
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// fire runs fn for the trigger numbered gen; a timer that lost the race
// with a newer Trigger finds a different gen and does nothing
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	value := d.pending
	d.armed = false
	d.timer = nil
	if d.fired && value == d.last {
		d.mu.Unlock()
		return
	}
	d.last = value
	d.fired = true
	d.mu.Unlock()

	d.fn(value)
}

// Seed sets the value fn is compared against without calling fn, so the
// initial state of an editor does not trigger a save.
func (d *Debouncer) Seed(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = value
	d.fired = true
}
