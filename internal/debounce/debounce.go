// Package debounce coalesces bursts of calls so only the last one runs.
package debounce

import (
	"context"
	"sync"
	"time"
)

// Debouncer runs the most recent call once no newer call arrived for the
// window. It is safe for concurrent use.
type Debouncer struct {
	window time.Duration

	mu      sync.Mutex
	pending chan struct{}
}

func New(window time.Duration) *Debouncer {
	return &Debouncer{window: window}
}

// Do waits for the window and then runs fn, unless another Do started in
// the meantime. A superseded call returns fired=false right away without
// running fn. A call whose ctx ends first returns ctx.Err().
func (d *Debouncer) Do(ctx context.Context, fn func(context.Context) error) (fired bool, err error) {
	superseded := make(chan struct{})

	d.mu.Lock()
	if d.pending != nil {
		close(d.pending)
	}
	d.pending = superseded
	d.mu.Unlock()

	timer := time.NewTimer(d.window)
	defer timer.Stop()

	select {
	case <-superseded:
		return false, nil
	case <-ctx.Done():
		d.release(superseded)
		return false, ctx.Err()
	case <-timer.C:
	}

	d.mu.Lock()
	if d.pending != superseded {
		// a newer call closed us between the timer firing and now
		d.mu.Unlock()
		return false, nil
	}
	d.pending = nil
	d.mu.Unlock()

	return true, fn(ctx)
}

func (d *Debouncer) release(ch chan struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == ch {
		d.pending = nil
	}
}
