// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"time"

	"github.com/joeycumines/go-eventloop"
)

// SetHook replaces the default scheduling of convergence checks for one
// execution, see [Entry]. It is called on every state write, with a function
// that performs the check (and the pass, if state changed) when invoked.
// converge must be invoked on the loop goroutine.
type SetHook func(converge func())

// requestReconverge is called by every setter.
func (x *execution) requestReconverge() {
	if x.disposed.Load() {
		return
	}
	if x.setHook != nil {
		x.setHook(x.converge)
		return
	}
	x.queueCheck()
}

// queueCheck queues a convergence check for the next microtask, unless one
// is already queued, which coalesces any number of writes.
func (x *execution) queueCheck() {
	if x.checkQueued {
		return
	}
	x.checkQueued = true
	if err := x.engine.js.QueueMicrotask(func() {
		x.checkQueued = false
		x.converge()
	}); err != nil {
		x.checkQueued = false
		x.engine.logger.Warning().
			Str(`execution`, x.id).
			Err(err).
			Log(`failed to queue convergence check`)
	}
}

// converge runs another pass if state differs from the snapshot taken at the
// start of the latest pass.
func (x *execution) converge() {
	switch {
	case x.disposed.Load():
	case x.running:
		// the check must follow the pass in progress
		x.queueCheck()
		return
	case !Equal(x.state, x.prior):
		x.engine.logger.Debug().
			Str(`execution`, x.id).
			Log(`state changed, running another pass`)
		if err := x.pass(); err != nil {
			x.fail(err)
		}
	}
	x.notifyIdle()
}

func (x *execution) busy() bool {
	return x.checkQueued || x.failures != 0
}

// whenIdle calls fn once no convergence check or failure is queued.
func (x *execution) whenIdle(fn func()) {
	if x.busy() {
		x.idle = append(x.idle, fn)
		return
	}
	fn()
}

func (x *execution) notifyIdle() {
	if x.busy() || len(x.idle) == 0 {
		return
	}
	idle := x.idle
	x.idle = nil
	for _, fn := range idle {
		fn()
	}
}

func (x *execution) settle(delay time.Duration) *eventloop.ChainedPromise {
	promise, resolve, _ := x.engine.js.NewChainedPromise()
	done := func() { resolve(x.handle) }

	if _, err := x.engine.js.SetTimeout(func() { x.whenIdle(done) }, delayMillis(delay)); err != nil {
		x.engine.logger.Warning().
			Str(`execution`, x.id).
			Err(err).
			Log(`failed to schedule settle timer`)
		done()
	}

	return promise
}

// fail hands an asynchronous failure to the error channel, at the next
// microtask.
func (x *execution) fail(err error) {
	x.failures++
	if qerr := x.engine.js.QueueMicrotask(func() { x.handleFailure(err) }); qerr != nil {
		x.handleFailure(err)
	}
}

// handleFailure schedules a cleanup flush, then passes err to the handler
// registered by the body, or failing that, the engine's unhandled error sink.
func (x *execution) handleFailure(err error) {
	defer func() {
		x.failures--
		x.notifyIdle()
	}()

	if len(x.effects) != 0 {
		if _, terr := x.engine.js.SetTimeout(x.cleanup, 0); terr != nil {
			x.cleanup()
		}
	}

	if handler := x.onError; handler != nil {
		x.engine.logger.Debug().
			Str(`execution`, x.id).
			Err(err).
			Log(`failure passed to handler`)
		handler(err)
		return
	}

	x.engine.reportUnhandled(x, err)
}

func (x *execution) cleanup() {
	if err := x.flush(flushCleanup); err != nil {
		x.engine.logger.Warning().
			Str(`execution`, x.id).
			Err(err).
			Log(`cleanup flush failed`)
	}
}

func (x *execution) teardownAll() {
	if !x.disposed.CompareAndSwap(false, true) {
		return
	}
	x.engine.logger.Debug().
		Str(`execution`, x.id).
		Int(`effects`, len(x.effects)).
		Log(`tearing down`)
	if len(x.effects) != 0 {
		if err := x.flush(flushUnmount); err != nil {
			x.fail(err)
		}
	}
	x.notifyIdle()
}
