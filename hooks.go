// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"context"
	"fmt"
)

// Deps is a dependency array for [UseMemo] and [UseEffect]. A nil Deps is
// absent, which is distinct from an empty (non-nil) Deps for memos.
type Deps []any

// Setter writes one state slot. Every write requests a convergence check,
// even if the value did not change; writes made before that check runs are
// coalesced into at most one further pass.
//
// Setters must only be used on the engine's loop goroutine, see
// [Engine.Submit].
type Setter[T any] struct {
	x   *execution
	key int
}

// Set stores v and returns it.
func (s Setter[T]) Set(v T) T {
	s.x.state[s.key] = v
	s.x.requestReconverge()
	return v
}

// Update stores the value returned by fn, which receives the current value,
// and returns it.
func (s Setter[T]) Update(fn func(prev T) T) T {
	prev, _ := s.x.state[s.key].(T)
	return s.Set(fn(prev))
}

// Ref is a stable mutable box, see [UseRef].
type Ref[T any] struct {
	Current T
}

type stackKey struct{}

func withStack(ctx context.Context, stack *Stack) context.Context {
	return context.WithValue(ctx, stackKey{}, stack)
}

// current resolves the active execution from the stack carried by ctx,
// panicking with ErrNoActiveExecution if there is none.
func current(ctx context.Context) *execution {
	var stack *Stack
	if ctx != nil {
		stack, _ = ctx.Value(stackKey{}).(*Stack)
	}
	x, err := stack.current()
	if err != nil {
		panic(err)
	}
	return x
}

// UseState returns the value of the next state slot, and a setter for it.
// The slot is initialized to fallback the first time it is reached.
func UseState[T any](ctx context.Context, fallback T) (T, Setter[T]) {
	x := current(ctx)
	key := x.stateCursor
	x.stateCursor++

	if key == len(x.state) {
		x.state = append(x.state, fallback)
	}

	value, ok := x.state[key].(T)
	if !ok && x.state[key] != nil {
		panic(fmt.Errorf("%w: state slot %d holds %T, not %T", ErrUnstableCallShape, key, x.state[key], value))
	}

	return value, Setter[T]{x: x, key: key}
}

// UseMemo returns the value cached in the next memo slot, calling producer
// to (re)compute it when the slot is new, when no dependency array was
// previously recorded, or when deps differs from the recorded one per
// [Equal].
func UseMemo[T any](ctx context.Context, producer func() T, deps Deps) T {
	x := current(ctx)
	key := x.memoCursor
	x.memoCursor++

	if key == len(x.memos) {
		x.memos = append(x.memos, memoSlot{})
	}

	if m := x.memos[key]; !m.computed || m.deps == nil || !Equal(m.deps, deps) {
		// producer may itself use accessors, growing x.memos
		value := producer()
		x.memos[key] = memoSlot{value: value, deps: Clone(deps), computed: true}
	}

	value, _ := x.memos[key].value.(T)
	return value
}

// UseRef returns a box that is created once per execution, with Current
// initialized to a deep copy of initial (see [Clone]).
func UseRef[T any](ctx context.Context, initial T) *Ref[T] {
	return UseMemo(ctx, func() *Ref[T] {
		return &Ref[T]{Current: Clone(initial)}
	}, Deps{})
}

// UseEffect records callback in the next effect slot, to be run after the
// pass finishes.
//
// A nil or empty deps means mount once: the callback runs a single time over
// the execution's life, and its teardown only runs when the execution is
// torn down. Otherwise the callback runs after the first pass and after every
// pass where deps differs from the previous pass per [Equal], with the
// previous teardown running immediately before each remount.
func UseEffect(ctx context.Context, callback EffectFunc, deps Deps) {
	x := current(ctx)
	key := x.effectCursor
	x.effectCursor++

	if key == len(x.effects) {
		x.effects = append(x.effects, &effectSlot{})
	}
	fx := x.effects[key]

	mountOnce := len(deps) == 0
	fx.runOnMount = !mountOnce && (!fx.hasDeps || !Equal(fx.deps, deps))
	fx.mountOnce = mountOnce
	fx.callback = callback
	fx.deps = Clone(deps)
	fx.hasDeps = deps != nil
}

// OnError registers the handler for asynchronous failures of the current
// execution. Once registered, failures are passed to it instead of the
// engine's unhandled error sink, see [WithUnhandledError].
func OnError(ctx context.Context, handler func(err error)) {
	current(ctx).onError = handler
}
