package slug

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period after the last keystroke before a live
// availability check is issued.
const DefaultDebounce = 350 * time.Millisecond

// Debouncer runs only the most recent of a burst of triggers, once the input has
// been quiet for the configured wait. Each Trigger cancels the pending run.
type Debouncer struct {
	mu      sync.Mutex
	wait    time.Duration
	timer   *time.Timer
	gen     uint64
	stopped bool
}

func NewDebouncer(wait time.Duration) *Debouncer {
	if wait <= 0 {
		wait = DefaultDebounce
	}
	return &Debouncer{wait: wait}
}

// Trigger schedules fn, replacing any run that has not fired yet.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.gen++
	g := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.wait, func() {
		d.mu.Lock()
		current := g == d.gen && !d.stopped
		d.mu.Unlock()
		// a timer that lost the race with Stop or a newer Trigger must not run
		if current {
			fn()
		}
	})
}

// Cancel drops the pending run, if any, but keeps the debouncer usable.
func (d *Debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Stop cancels the pending run and ignores later triggers.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
	}
}
