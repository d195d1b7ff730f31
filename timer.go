// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"time"
)

// Timer is a timeout or interval scheduled by [Engine.SetTimeout] or
// [Engine.SetInterval]. Unlike the JS adapter's ClearTimeout, [Timer.Stop]
// never waits on the loop, so it is safe to call from a [Teardown].
//
// A Timer must only be used on the engine's loop goroutine.
type Timer struct {
	stopped bool
}

// Stop prevents any further call of the timer's callback. It reports
// whether this call stopped the timer, i.e. false if it was already stopped,
// or was a timeout that already fired.
func (t *Timer) Stop() bool {
	if t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Stopped reports whether the timer will never call its callback again.
func (t *Timer) Stopped() bool {
	return t.stopped
}

// SetTimeout calls fn on the loop goroutine once at least delay has passed,
// unless the returned timer is stopped first.
func (e *Engine) SetTimeout(fn func(), delay time.Duration) (*Timer, error) {
	t := new(Timer)
	if _, err := e.js.SetTimeout(func() {
		if t.stopped {
			return
		}
		t.stopped = true
		fn()
	}, delayMillis(delay)); err != nil {
		return nil, err
	}
	return t, nil
}

// SetInterval calls fn on the loop goroutine every delay, until the returned
// timer is stopped. The next call is scheduled after fn returns.
func (e *Engine) SetInterval(fn func(), delay time.Duration) (*Timer, error) {
	t := new(Timer)
	ms := delayMillis(delay)

	var tick func()
	tick = func() {
		if t.stopped {
			return
		}
		fn()
		if t.stopped {
			return
		}
		if _, err := e.js.SetTimeout(tick, ms); err != nil {
			t.stopped = true
			e.logger.Warning().
				Err(err).
				Log(`failed to reschedule interval`)
		}
	}

	if _, err := e.js.SetTimeout(tick, ms); err != nil {
		return nil, err
	}
	return t, nil
}

// delayMillis rounds delay up to whole milliseconds.
func delayMillis(delay time.Duration) int {
	if delay <= 0 {
		return 0
	}
	return int((delay + time.Millisecond - 1) / time.Millisecond)
}
