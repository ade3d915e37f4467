// Package throttle bounds how often a callback runs when it is triggered by a
// high-frequency source such as file-system events or per-request counters.
//
// A Throttler runs its callback immediately on the first Call, then at most once per
// window afterwards. Calls that arrive inside the window collapse into a single
// trailing invocation scheduled for when the window elapses: the most recent call
// always wins and is never dropped.
//
//	reload := throttle.New(func() { dir.Reload(ctx) }, 500*time.Millisecond)
//	defer reload.Stop()
//	for range events {
//	    reload.Call()
//	}
package throttle

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Option configures a Throttler.
type Option func(*Throttler)

// WithClock replaces the wall clock, typically with clockwork.NewFakeClock() in tests.
func WithClock(clock clockwork.Clock) Option {
	return func(t *Throttler) {
		t.clock = clock
	}
}

// Throttler wraps a callback and a window. The zero value is not usable; use New.
type Throttler struct {
	fn     func()
	window time.Duration
	clock  clockwork.Clock

	mu      sync.Mutex
	active  bool // false until the first Call
	lastRan time.Time
	pending clockwork.Timer
	gen     uint64 // identifies the current pending timer
	stopped bool

	// run serialises executions of fn.
	run sync.Mutex
}

// New returns a Throttler that runs fn at most once per window.
func New(fn func(), window time.Duration, opts ...Option) *Throttler {
	t := &Throttler{
		fn:     fn,
		window: window,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Call triggers the callback. The very first Call runs it synchronously; later
// calls replace any pending trailing invocation with a new one due when the window
// since the last execution has elapsed.
func (t *Throttler) Call() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if !t.active {
		t.active = true
		t.lastRan = t.clock.Now()
		t.mu.Unlock()
		t.invoke()
		return
	}
	t.scheduleLocked(t.window - t.clock.Since(t.lastRan))
	t.mu.Unlock()
}

// Stop cancels any pending trailing invocation and makes future calls no-ops.
// It waits for an execution already in progress to return, so it must not be
// called from the callback. It is safe to call more than once.
func (t *Throttler) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.cancelLocked()
	t.mu.Unlock()

	// Wait for an in-flight fn.
	t.run.Lock()
	defer t.run.Unlock()
}

// Flush runs a pending trailing invocation now instead of waiting for the window.
// It reports whether there was one to run.
func (t *Throttler) Flush() bool {
	t.mu.Lock()
	if t.pending == nil {
		t.mu.Unlock()
		return false
	}
	t.cancelLocked()
	t.lastRan = t.clock.Now()
	t.mu.Unlock()
	t.invoke()
	return true
}

// Pending reports whether a trailing invocation is scheduled.
func (t *Throttler) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending != nil
}

func (t *Throttler) scheduleLocked(delay time.Duration) {
	t.cancelLocked()
	if delay < 0 {
		delay = 0
	}
	t.gen++
	gen := t.gen
	t.pending = t.clock.AfterFunc(delay, func() { t.fire(gen) })
}

// cancelLocked stops the pending timer, if any. Stopping an already-fired timer
// is harmless: fire checks the generation before doing anything.
func (t *Throttler) cancelLocked() {
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.gen++
}

func (t *Throttler) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.stopped {
		// superseded by a newer Call, or cancelled
		t.mu.Unlock()
		return
	}
	if remaining := t.window - t.clock.Since(t.lastRan); remaining > 0 {
		// The timer fired before the window closed; keep the trailing call alive.
		t.scheduleLocked(remaining)
		t.mu.Unlock()
		return
	}
	t.pending = nil
	t.lastRan = t.clock.Now()
	t.mu.Unlock()
	t.invoke()
}

func (t *Throttler) invoke() {
	t.run.Lock()
	defer t.run.Unlock()
	t.fn()
}
