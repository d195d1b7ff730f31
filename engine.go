// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"context"

	"github.com/joeycumines/go-eventloop"
	"github.com/joeycumines/logiface"
)

// Engine runs executions on an event loop. All passes, flushes and
// convergence checks of its executions run on the loop goroutine, one at a
// time.
type Engine struct {
	loop      *eventloop.Loop
	js        *eventloop.JS
	stack     *Stack
	logger    *logiface.Logger[logiface.Event]
	unhandled func(error)
}

// New creates an Engine bound to loop. The caller remains responsible for
// running and shutting down the loop.
func New(loop *eventloop.Loop, opts ...Option) (*Engine, error) {
	if loop == nil {
		return nil, ErrNilLoop
	}

	options, err := resolveOptions(opts)
	if err != nil {
		return nil, err
	}

	js, err := eventloop.NewJS(loop)
	if err != nil {
		return nil, err
	}

	return &Engine{
		loop:      loop,
		js:        js,
		stack:     options.stack,
		logger:    options.logger,
		unhandled: options.unhandled,
	}, nil
}

// Loop returns the event loop the engine runs on.
func (e *Engine) Loop() *eventloop.Loop {
	return e.loop
}

// JS returns the timer and promise adapter used by the engine, which bodies
// and effects may use to schedule work on the same loop.
//
// The adapter's ClearTimeout and ClearInterval wait for the loop to process
// the cancellation, so they block forever if called on the loop goroutine,
// including from a [Teardown]. Effects should use [Engine.SetTimeout] and
// [Engine.SetInterval] instead.
func (e *Engine) JS() *eventloop.JS {
	return e.js
}

// Stack returns the stack used to resolve the current execution.
func (e *Engine) Stack() *Stack {
	return e.stack
}

// Submit runs fn on the loop goroutine. It is safe to call from any
// goroutine, and is the way to use setters from outside the loop.
func (e *Engine) Submit(fn func()) error {
	return e.loop.Submit(fn)
}

func (e *Engine) reportUnhandled(x *execution, err error) {
	e.logger.Err().
		Str(`execution`, x.id).
		Err(err).
		Log(`unhandled failure`)
	if e.unhandled != nil {
		e.unhandled(err)
		return
	}
	// the loop recovers panics raised by tasks, so crash from outside it
	go crash(err)
}

// crash terminates the process with an unrecovered panic. Replaced in tests.
var crash = func(err error) {
	panic(err)
}

// Body is a function run repeatedly by an [Execution]. It must use accessors
// ([UseState], [UseMemo], [UseRef], [UseEffect], [OnError]) with the ctx it
// receives, in the same order and number on every pass.
type Body[A, R any] func(ctx context.Context, args A) (R, error)

// Entry wraps the first pass of an execution. The default calls trigger
// immediately and returns its error.
//
// An entry may instead defer trigger, and may call install to replace how
// convergence checks are scheduled for the execution, see [SetHook]. trigger
// and install must be called on the loop goroutine.
type Entry func(trigger func() error, install func(hook SetHook)) error

func defaultEntry(trigger func() error, _ func(hook SetHook)) error {
	return trigger()
}

// Factory creates executions of one body.
type Factory[A, R any] struct {
	engine *Engine
	body   Body[A, R]
	entry  Entry
}

// NewFactory binds body to engine.
func NewFactory[A, R any](engine *Engine, body Body[A, R], opts ...FactoryOption) (*Factory[A, R], error) {
	if engine == nil {
		return nil, ErrNilEngine
	}
	if body == nil {
		return nil, ErrNilBody
	}

	options, err := resolveFactoryOptions(opts)
	if err != nil {
		return nil, err
	}

	return &Factory[A, R]{
		engine: engine,
		body:   body,
		entry:  options.entry,
	}, nil
}

// Call creates an execution bound to args, and runs its first pass through
// the factory's [Entry]. It must be called on the loop goroutine, e.g. from
// another body or an effect.
//
// A failed first pass is returned as an *InvocationError, along with the
// execution, as its effects may still need tearing down.
func (f *Factory[A, R]) Call(args A) (*Execution[R], error) {
	x := newExecution(f.engine, func(ctx context.Context) (any, error) {
		return f.body(ctx, args)
	})
	handle := &Execution[R]{x: x}
	x.handle = handle

	err := f.entry(x.pass, func(hook SetHook) {
		x.setHook = hook
	})

	return handle, err
}

// Start is [Factory.Call] for use from outside the loop goroutine: it runs
// Call on the loop and waits for it to return, or for ctx to be done. It
// must not be called on the loop goroutine.
//
// If ctx is done first, the execution Call creates is torn down once it
// returns.
func (f *Factory[A, R]) Start(ctx context.Context, args A) (*Execution[R], error) {
	type outcome struct {
		execution *Execution[R]
		err       error
	}

	ch := make(chan outcome, 1)
	if err := f.engine.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: recoverError(r)}
			}
		}()
		execution, err := f.Call(args)
		ch <- outcome{execution, err}
	}); err != nil {
		return nil, err
	}

	select {
	case o := <-ch:
		return o.execution, o.err
	case <-ctx.Done():
		// nobody can dispose an execution that is never returned
		go func() {
			if o := <-ch; o.execution != nil {
				_ = f.engine.Submit(o.execution.TeardownAll)
			}
		}()
		return nil, ctx.Err()
	}
}
