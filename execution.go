// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/go-eventloop"
)

// callShape is the number of accessor calls of each kind made by a pass.
type callShape struct {
	state, effect, memo int
}

func (s callShape) String() string {
	return fmt.Sprintf("state=%d effect=%d memo=%d", s.state, s.effect, s.memo)
}

type memoSlot struct {
	value    any
	deps     Deps
	computed bool
}

// execution is the untyped core of an [Execution]. Apart from mu-guarded
// fields and disposed, it is only accessed from the loop goroutine.
type execution struct {
	engine *Engine
	body   func(ctx context.Context) (any, error)
	// handle is the *Execution[R] that settle promises resolve with
	handle any
	id     string

	mu     sync.Mutex
	result any
	passes int

	state   []any
	prior   []any
	memos   []memoSlot
	effects []*effectSlot

	stateCursor  int
	memoCursor   int
	effectCursor int

	shape *callShape

	onError func(error)
	setHook SetHook

	// idle holds settle continuations waiting for convergence work
	idle []func()

	// failures counts failures queued for the error channel
	failures int

	disposed atomic.Bool

	// checkQueued is set while a convergence check is queued
	checkQueued bool
	running     bool
}

func newExecution(engine *Engine, body func(ctx context.Context) (any, error)) *execution {
	return &execution{
		engine: engine,
		body:   body,
		id:     uuid.Must(uuid.NewV7()).String(),
	}
}

// pass runs the body once. Regardless of the outcome, the execution is popped
// and its effects flushed (flush failures go to the error channel); only the
// body's own failure is returned. A disposed execution never runs.
func (x *execution) pass() (err error) {
	if x.disposed.Load() {
		x.engine.logger.Debug().
			Str(`execution`, x.id).
			Log(`pass skipped, execution disposed`)
		return nil
	}

	x.stateCursor, x.memoCursor, x.effectCursor = 0, 0, 0
	x.prior = Clone(x.state)

	x.mu.Lock()
	x.passes++
	n := x.passes
	x.mu.Unlock()

	x.engine.logger.Trace().
		Str(`execution`, x.id).
		Int(`pass`, n).
		Log(`pass started`)

	stack := x.engine.stack
	stack.push(x)
	x.running = true
	defer func() {
		stack.pop(x)
		x.running = false
		if len(x.effects) != 0 {
			if ferr := x.flush(flushSettle); ferr != nil {
				x.fail(ferr)
			}
		}
	}()

	result, err := x.invoke()
	if err != nil {
		return &InvocationError{Cause: err, Pass: n}
	}

	x.mu.Lock()
	x.result = result
	x.mu.Unlock()

	shape := callShape{state: x.stateCursor, effect: x.effectCursor, memo: x.memoCursor}
	if x.shape == nil {
		x.shape = &shape
	} else if *x.shape != shape {
		return &InvocationError{
			Cause: fmt.Errorf("%w (first pass: %s, this pass: %s)", ErrUnstableCallShape, x.shape, shape),
			Pass:  n,
		}
	}

	return nil
}

func (x *execution) invoke() (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverError(r)
		}
	}()
	return x.body(withStack(context.Background(), x.engine.stack))
}

// Execution is one binding of a body to its arguments, holding the body's
// state, memo and effect slots across passes. Executions are created by
// [Factory.Call] or [Factory.Start], and live until torn down.
//
// Methods documented as loop-only must be called on the engine's loop
// goroutine; the others are safe from any goroutine.
type Execution[R any] struct {
	x *execution
}

// ID returns a unique identifier, also used in log fields.
func (e *Execution[R]) ID() string {
	return e.x.id
}

// Result returns the value returned by the latest successful pass.
func (e *Execution[R]) Result() R {
	e.x.mu.Lock()
	defer e.x.mu.Unlock()
	result, _ := e.x.result.(R)
	return result
}

// Passes returns the number of passes started so far.
func (e *Execution[R]) Passes() int {
	e.x.mu.Lock()
	defer e.x.mu.Unlock()
	return e.x.passes
}

// Disposed reports whether [Execution.TeardownAll] has been called.
func (e *Execution[R]) Disposed() bool {
	return e.x.disposed.Load()
}

// Settle returns a promise resolving to e once at least delay has passed and
// any in-flight convergence work has completed. Loop-only.
//
// The promise never rejects: failures are reported through the error
// channel, see [OnError].
func (e *Execution[R]) Settle(delay time.Duration) *eventloop.ChainedPromise {
	return e.x.settle(delay)
}

// Wait blocks until [Execution.Settle] resolves, or ctx is done. It must not
// be called on the loop goroutine.
func (e *Execution[R]) Wait(ctx context.Context, delay time.Duration) error {
	ready := make(chan (<-chan any), 1)
	if err := e.x.engine.Submit(func() {
		ready <- e.x.settle(delay).ToChannel()
	}); err != nil {
		return err
	}

	var settled <-chan any
	select {
	case settled = <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TeardownAll runs every held teardown and disposes the execution: no
// further pass will start, and setters stop requesting convergence. It is
// idempotent. Loop-only.
func (e *Execution[R]) TeardownAll() {
	e.x.teardownAll()
}

// Dispose calls [Execution.TeardownAll] on the loop goroutine, and waits for
// it. It must not be called on the loop goroutine.
func (e *Execution[R]) Dispose(ctx context.Context) error {
	done := make(chan struct{})
	if err := e.x.engine.Submit(func() {
		defer close(done)
		e.x.teardownAll()
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
