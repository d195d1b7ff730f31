// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"errors"
	"fmt"

	"github.com/joeycumines/go-eventloop"
)

// Standard errors.
var (
	// ErrNoActiveExecution is the panic value raised when an accessor (UseState,
	// UseMemo, UseRef, UseEffect, OnError) is called outside a pass.
	ErrNoActiveExecution = errors.New("reactor: accessors must be called from within a pass")

	// ErrUnstableCallShape indicates a pass called accessors a different number
	// of times than the first pass did.
	ErrUnstableCallShape = errors.New("reactor: accessor calls must be invoked in a predictable way every invocation")

	// ErrNilBody is returned by NewFactory when the body is nil.
	ErrNilBody = errors.New("reactor: body must not be nil")

	// ErrNilEngine is returned by NewFactory when the engine is nil.
	ErrNilEngine = errors.New("reactor: engine must not be nil")

	// ErrNilLoop is returned by New when the loop is nil.
	ErrNilLoop = errors.New("reactor: loop must not be nil")

	errNilStack = errors.New("reactor: stack must not be nil")
	errNilEntry = errors.New("reactor: entry must not be nil")
)

// InvocationError is returned when a body fails, either by returning an
// error, by panicking, or by breaking the call shape of its accessors.
type InvocationError struct {
	Cause error
	// Pass is the 1-based pass number that failed.
	Pass int
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("reactor: unexpected failure in pass %d: %v", e.Pass, e.Cause)
}

func (e *InvocationError) Unwrap() error {
	return e.Cause
}

// EffectPhase identifies which part of an effect failed.
type EffectPhase string

const (
	PhaseMount    EffectPhase = "mount"
	PhaseTeardown EffectPhase = "teardown"
)

// EffectError is reported through the error channel when an effect callback
// or teardown fails during a flush. The remainder of that flush is skipped.
type EffectError struct {
	Cause error
	Phase EffectPhase
	// Slot is the call-order index of the effect within the body.
	Slot int
}

func (e *EffectError) Error() string {
	return fmt.Sprintf("reactor: effect %d %s failed: %v", e.Slot, e.Phase, e.Cause)
}

func (e *EffectError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a panic in a body, effect or
// teardown.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("reactor: panic: %v", e.Value)
}

// Unwrap returns the equivalent [eventloop.PanicError], which in turn unwraps
// to the panic value if it is an error. Both [errors.Is] and [errors.As]
// therefore match either panic type, and see through to the value.
func (e PanicError) Unwrap() error {
	return eventloop.PanicError{Value: e.Value}
}

// recoverError converts a recovered panic value into an error.
func recoverError(r any) error {
	return PanicError{Value: r}
}
