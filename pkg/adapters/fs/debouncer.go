package fs

import (
	"sync"
	"time"
)

// debouncer coalesces note ids touched within a window and hands them to
// flush as one ordered group. The window starts at the first pending id, so a
// steady stream of writes cannot postpone delivery indefinitely.
type debouncer struct {
	window time.Duration
	flush  func(ids []string)

	mu      sync.Mutex
	pending []string
	seen    map[string]struct{}
	timer   *time.Timer
	stopped bool

	flushMu  sync.Mutex // one flush at a time, preserves group order
	inFlight sync.WaitGroup
}

func newDebouncer(window time.Duration, flush func(ids []string)) *debouncer {
	return &debouncer{
		window: window,
		flush:  flush,
		seen:   make(map[string]struct{}),
	}
}

func (d *debouncer) add(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if _, ok := d.seen[id]; !ok {
		d.seen[id] = struct{}{}
		d.pending = append(d.pending, id)
	}
	if d.timer == nil {
		d.inFlight.Add(1)
		d.timer = time.AfterFunc(d.window, d.fire)
	}
}

func (d *debouncer) fire() {
	defer d.inFlight.Done()

	d.flushMu.Lock()
	defer d.flushMu.Unlock()

	d.mu.Lock()
	ids := d.pending
	d.pending = nil
	d.seen = make(map[string]struct{})
	d.timer = nil
	d.mu.Unlock()

	if len(ids) > 0 {
		d.flush(ids)
	}
}

// stopAndWait stops accepting ids and waits up to timeout for in-flight
// flushes. A pending group whose timer has not fired yet is discarded.
func (d *debouncer) stopAndWait(timeout time.Duration) bool {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		d.inFlight.Done()
		d.timer = nil
		d.pending = nil
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
