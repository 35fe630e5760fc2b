package query

import (
	"sync"
	"time"
)

// DefaultDebounce is the search input commit delay.
const DefaultDebounce = 500 * time.Millisecond

// Debouncer coalesces rapid query edits: every Push cancels the pending timer
// and restarts it, so only the last value reaches the callback.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	commit  func(string)
	timer   *time.Timer
	pending string
	gen     uint64
	armed   bool
}

// NewDebouncer returns a debouncer calling commit after delay of silence. A
// non-positive delay uses DefaultDebounce.
func NewDebouncer(delay time.Duration, commit func(string)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, commit: commit}
}

// Push records a keystroke.
func (d *Debouncer) Push(value string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	d.pending = value
	d.armed = true
	gen := d.gen
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen) })
}

// Flush commits the pending value immediately (the enter key).
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop drops the pending value.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.armed = false
}

// fire commits only when no newer Push superseded gen.
func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if !d.armed || gen != d.gen {
		d.mu.Unlock()
		return
	}
	value := d.pending
	d.armed = false
	d.mu.Unlock()

	if d.commit != nil {
		d.commit(value)
	}
}
