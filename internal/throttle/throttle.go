// Package throttle delays high-frequency input such as a colour picker
// being dragged.
//
// Deferred does not drop calls. Every call is queued with its own argument
// and applied one delay after it arrived. Applies run one at a time in call
// order, whichever timer happens to fire first. Stop cancels everything
// still queued.
package throttle

import (
	"sync"
	"time"
)

// DefaultDelay is the delay used for colour input.
const DefaultDelay = 50 * time.Millisecond

// Timer is the subset of *time.Timer used by Deferred.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f to run after d. It may run f inline.
type AfterFunc func(d time.Duration, f func()) Timer

// RealClock schedules with time.AfterFunc.
func RealClock(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type entry[T any] struct {
	id uint64
	v  T
}

// Deferred fires fn for every call after delay.
type Deferred[T any] struct {
	fn    func(T)
	delay time.Duration
	after AfterFunc

	// applyMu keeps drains from interleaving.
	applyMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	queue   []entry[T]
	timers  map[uint64]Timer
	stopped bool
}

// New creates a Deferred using the real clock.
func New[T any](fn func(T), delay time.Duration) *Deferred[T] {
	return NewWithClock(fn, delay, RealClock)
}

// NewWithClock creates a Deferred with an injected scheduler.
func NewWithClock[T any](fn func(T), delay time.Duration, after AfterFunc) *Deferred[T] {
	return &Deferred[T]{
		fn:     fn,
		delay:  delay,
		after:  after,
		timers: make(map[uint64]Timer),
	}
}

// Call queues fn(v) for after the delay. Calls after Stop are ignored.
func (d *Deferred[T]) Call(v T) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.seq++
	id := d.seq
	d.queue = append(d.queue, entry[T]{id: id, v: v})
	d.mu.Unlock()

	t := d.after(d.delay, func() { d.fire(id) })

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || !d.queued(id) {
		t.Stop()
		return
	}
	d.timers[id] = t
}

// queued reports whether id is still waiting. d.mu must be held.
func (d *Deferred[T]) queued(id uint64) bool {
	for _, e := range d.queue {
		if e.id == id {
			return true
		}
	}
	return false
}

// fire applies every queued entry up to and including id. Entries ahead of
// id were queued earlier with the same delay, so they are due as well.
func (d *Deferred[T]) fire(id uint64) {
	d.applyMu.Lock()
	defer d.applyMu.Unlock()

	for {
		d.mu.Lock()
		if len(d.queue) == 0 || d.queue[0].id > id {
			d.mu.Unlock()
			return
		}
		e := d.queue[0]
		d.queue = d.queue[1:]
		if t, ok := d.timers[e.id]; ok {
			t.Stop()
			delete(d.timers, e.id)
		}
		d.mu.Unlock()

		d.fn(e.v)
	}
}

// Pending reports whether a queued call has not been applied yet.
func (d *Deferred[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue) > 0
}

// Stop cancels every queued call and ignores later ones.
func (d *Deferred[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	d.queue = nil
	for id, t := range d.timers {
		t.Stop()
		delete(d.timers, id)
	}
}
