package viewport

import (
	"sync"
	"time"
)

const (
	DefaultScrollDebounce = 333 * time.Millisecond
	DefaultResizeDebounce = 500 * time.Millisecond
)

// Debouncer runs fn on the trailing edge of a burst of signals: every Signal
// cancels the pending run and schedules a new one delay later.
type Debouncer struct {
	delay time.Duration
	fn    func()

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewDebouncer returns a Debouncer calling fn delay after the last Signal.
func NewDebouncer(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Signal (re)starts the quiet window.
func (d *Debouncer) Signal() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	seq := d.seq
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		// A timer whose Stop lost the race must not run.
		if seq != d.seq {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()

		d.fn()
	})
}

// Pending reports whether a run is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Stop cancels any scheduled run.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.seq++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Delay returns the quiet window length.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
