package watch

import (
	"sync"
	"time"
)

// Debouncer coalesces a burst of triggers into one fire. Each Trigger
// restarts the delay; when the delay elapses without another trigger, a
// single value is sent on C. Sends are non-blocking, so fires that the
// consumer has not drained yet collapse too.
type Debouncer struct {
	C chan struct{}

	delay time.Duration
	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a Debouncer with the given quiet delay.
func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{
		C:     make(chan struct{}, 1),
		delay: delay,
	}
}

// Trigger (re)starts the delay.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		select {
		case d.C <- struct{}{}:
		default:
		}
	})
}

// Stop cancels any pending fire.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
