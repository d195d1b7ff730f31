// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"github.com/joeycumines/logiface"
)

// engineOptions holds configuration options for Engine creation.
type engineOptions struct {
	logger    *logiface.Logger[logiface.Event]
	unhandled func(error)
	stack     *Stack
}

// --- Engine Options ---

// Option configures an [Engine] instance.
type Option interface {
	applyEngine(*engineOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyEngineFunc func(*engineOptions) error
}

func (o *optionImpl) applyEngine(opts *engineOptions) error {
	return o.applyEngineFunc(opts)
}

// WithLogger attaches a structured logger. A nil logger (the default)
// disables logging.
//
// Loggers for a specific backend may be converted using the Logger method,
// e.g. stumpy.L.New(...).Logger().
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithUnhandledError sets the sink for asynchronous failures (failed passes
// scheduled by convergence, failed effects and teardowns) of executions
// that did not register a handler via [OnError].
//
// The default sink treats the failure as uncaught: after logging it, it
// panics on a new goroutine, terminating the process.
func WithUnhandledError(handler func(err error)) Option {
	return &optionImpl{func(opts *engineOptions) error {
		opts.unhandled = handler
		return nil
	}}
}

// WithStack injects the [Stack] used to resolve the current execution.
// Engines sharing a loop may share a stack, which lets a body of one engine
// start executions of another. By default each engine owns its own stack.
func WithStack(stack *Stack) Option {
	return &optionImpl{func(opts *engineOptions) error {
		if stack == nil {
			return errNilStack
		}
		opts.stack = stack
		return nil
	}}
}

// resolveOptions applies Option instances to engineOptions.
func resolveOptions(opts []Option) (*engineOptions, error) {
	cfg := &engineOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyEngine(cfg); err != nil {
			return nil, err
		}
	}
	if cfg.stack == nil {
		cfg.stack = NewStack()
	}
	return cfg, nil
}

// --- Factory Options ---

// FactoryOption configures a [Factory].
type FactoryOption interface {
	applyFactory(*factoryOptions) error
}

type factoryOptions struct {
	entry Entry
}

type factoryOptionImpl struct {
	applyFactoryFunc func(*factoryOptions) error
}

func (o *factoryOptionImpl) applyFactory(opts *factoryOptions) error {
	return o.applyFactoryFunc(opts)
}

// WithEntry wraps the first pass of every execution created by the factory.
// See [Entry].
func WithEntry(entry Entry) FactoryOption {
	return &factoryOptionImpl{func(opts *factoryOptions) error {
		if entry == nil {
			return errNilEntry
		}
		opts.entry = entry
		return nil
	}}
}

func resolveFactoryOptions(opts []FactoryOption) (*factoryOptions, error) {
	cfg := &factoryOptions{
		entry: defaultEntry,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyFactory(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
