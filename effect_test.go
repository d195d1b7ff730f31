package reactor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUseEffect_mountOnce(t *testing.T) {
	for _, tc := range []struct {
		name string
		deps Deps
	}{
		{`absent`, nil},
		{`empty`, Deps{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			engine := newTestEngine(t)
			ctx := testContext(t)

			var mounts, teardowns atomic.Int32
			execution := start(t, engine, func(ctx context.Context, _ struct{}) (string, error) {
				value, setValue := UseState(ctx, 5)
				if value > 1 {
					setValue.Set(value - 1)
				}
				UseEffect(ctx, func() Teardown {
					mounts.Add(1)
					return func() { teardowns.Add(1) }
				}, tc.deps)
				return `OSOM`, nil
			}, struct{}{})

			require.NoError(t, execution.Wait(ctx, 0))
			assert.Equal(t, `OSOM`, execution.Result())
			assert.Equal(t, 5, execution.Passes())
			assert.Equal(t, int32(1), mounts.Load())
			assert.Equal(t, int32(0), teardowns.Load())

			require.NoError(t, execution.Dispose(ctx))
			assert.Equal(t, int32(1), mounts.Load())
			assert.Equal(t, int32(1), teardowns.Load())

			require.NoError(t, execution.Dispose(ctx))
			assert.Equal(t, int32(1), teardowns.Load())
		})
	}
}

func TestUseEffect_mountOnceWithoutTeardown(t *testing.T) {
	engine := newTestEngine(t)
	ctx := testContext(t)

	var mounts atomic.Int32
	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		value, setValue := UseState(ctx, 3)
		if value > 0 {
			setValue.Set(value - 1)
		}
		UseEffect(ctx, func() Teardown {
			mounts.Add(1)
			return nil
		}, nil)
		return value, nil
	}, struct{}{})

	require.NoError(t, execution.Wait(ctx, 0))
	assert.Equal(t, 4, execution.Passes())
	assert.Equal(t, int32(1), mounts.Load())
}

func TestUseEffect_rerunsWhenDepsChange(t *testing.T) {
	engine := newTestEngine(t)
	ctx := testContext(t)

	var events []string
	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		value, setValue := UseState(ctx, 3)
		if value > 0 {
			setValue.Set(value - 1)
		}
		UseEffect(ctx, func() Teardown {
			events = append(events, `mount`)
			return func() { events = append(events, `teardown`) }
		}, Deps{value})
		return value, nil
	}, struct{}{})

	require.NoError(t, execution.Wait(ctx, 0))
	assert.Equal(t, 4, execution.Passes())
	assert.Equal(t, 0, execution.Result())
	onLoop(t, engine, func() {
		assert.Equal(t, []string{
			`mount`,
			`teardown`, `mount`,
			`teardown`, `mount`,
			`teardown`, `mount`,
		}, events)
	})

	require.NoError(t, execution.Dispose(ctx))
	onLoop(t, engine, func() {
		assert.Len(t, events, 8)
		assert.Equal(t, `teardown`, events[7])
	})
}

func TestUseEffect_skipsUnchangedDeps(t *testing.T) {
	engine := newTestEngine(t)
	ctx := testContext(t)

	var fixed, keyed atomic.Int32
	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		value, setValue := UseState(ctx, 4)
		if value > 0 {
			setValue.Set(value - 1)
		}
		UseEffect(ctx, func() Teardown {
			fixed.Add(1)
			return nil
		}, Deps{`constant`, []int{1, 2}})
		UseEffect(ctx, func() Teardown {
			keyed.Add(1)
			return nil
		}, Deps{value >= 2})
		return value, nil
	}, struct{}{})

	require.NoError(t, execution.Wait(ctx, 0))
	assert.Equal(t, 5, execution.Passes())
	assert.Equal(t, int32(1), fixed.Load())
	assert.Equal(t, int32(2), keyed.Load())
}

func TestExecution_teardownAllCancelsPendingTimer(t *testing.T) {
	engine := newTestEngine(t)
	ctx := testContext(t)

	var cleared, fired atomic.Int32
	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		v, s := UseState(ctx, 0)
		UseEffect(ctx, func() Teardown {
			timer, err := engine.SetTimeout(func() {
				fired.Add(1)
				s.Set(v + 1)
			}, 100*time.Millisecond)
			if err != nil {
				panic(err)
			}
			return func() {
				cleared.Add(1)
				timer.Stop()
			}
		}, Deps{v})
		return v, nil
	}, struct{}{})

	require.NoError(t, execution.Wait(ctx, 50*time.Millisecond))
	require.NoError(t, execution.Dispose(ctx))
	assert.True(t, execution.Disposed())
	assert.Equal(t, 0, execution.Result())
	assert.Equal(t, int32(1), cleared.Load())

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, execution.Wait(ctx, 0))
	assert.Equal(t, int32(0), fired.Load())
	assert.Equal(t, int32(1), cleared.Load())
	assert.Equal(t, 1, execution.Passes())
}

func TestExecution_teardownAllNeverFlushed(t *testing.T) {
	engine := newTestEngine(t)
	ctx := testContext(t)

	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		return 1, nil
	}, struct{}{})

	require.NoError(t, execution.Dispose(ctx))
	require.NoError(t, execution.Dispose(ctx))
	assert.True(t, execution.Disposed())
}

func TestExecution_disposedStopsConvergence(t *testing.T) {
	engine := newTestEngine(t)
	ctx := testContext(t)

	var setter Setter[int]
	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		v, set := UseState(ctx, 0)
		setter = set
		return v, nil
	}, struct{}{})

	onLoop(t, engine, func() {
		execution.TeardownAll()
		assert.Equal(t, 9, setter.Set(9))
	})
	require.NoError(t, execution.Wait(ctx, 10*time.Millisecond))
	assert.Equal(t, 1, execution.Passes())
	assert.Equal(t, 0, execution.Result())
}

func TestUseEffect_unhandledFailure(t *testing.T) {
	failures := make(chan error, 4)
	engine := newTestEngine(t, WithUnhandledError(func(err error) {
		failures <- err
	}))
	ctx := testContext(t)

	wat := errors.New(`WAT`)
	var mounts, teardowns atomic.Int32
	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		UseEffect(ctx, func() Teardown {
			mounts.Add(1)
			return func() { teardowns.Add(1) }
		}, Deps{1})
		UseEffect(ctx, func() Teardown {
			panic(wat)
		}, nil)
		return 42, nil
	}, struct{}{})

	var err error
	select {
	case err = <-failures:
	case <-ctx.Done():
		t.Fatal(`expected an unhandled failure`)
	}

	require.ErrorIs(t, err, wat)
	var effectErr *EffectError
	require.ErrorAs(t, err, &effectErr)
	assert.Equal(t, 1, effectErr.Slot)
	assert.Equal(t, PhaseMount, effectErr.Phase)

	require.NoError(t, execution.Wait(ctx, 10*time.Millisecond))
	assert.Equal(t, 42, execution.Result())
	assert.Equal(t, int32(1), mounts.Load())
	// the cleanup flush tore down the dependency driven effect
	assert.Equal(t, int32(1), teardowns.Load())
	assert.Empty(t, failures)
}

func TestUseEffect_teardownFailureHandled(t *testing.T) {
	engine := newTestEngine(t, WithUnhandledError(func(err error) {
		t.Errorf("unexpected unhandled failure: %v", err)
	}))
	ctx := testContext(t)

	failures := make(chan error, 4)
	execution := start(t, engine, func(ctx context.Context, _ struct{}) (int, error) {
		OnError(ctx, func(err error) { failures <- err })
		v, set := UseState(ctx, 0)
		if v == 0 {
			set.Set(1)
		}
		UseEffect(ctx, func() Teardown {
			return func() { panic(`teardown failed`) }
		}, Deps{v})
		return v, nil
	}, struct{}{})

	var err error
	select {
	case err = <-failures:
	case <-ctx.Done():
		t.Fatal(`expected a handled failure`)
	}

	var effectErr *EffectError
	require.ErrorAs(t, err, &effectErr)
	assert.Equal(t, PhaseTeardown, effectErr.Phase)
	assert.Equal(t, 0, effectErr.Slot)
	var panicErr PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, `teardown failed`, panicErr.Value)

	require.NoError(t, execution.Wait(ctx, 10*time.Millisecond))
	assert.Equal(t, 1, execution.Result())
}

func TestUseEffect_callbackDisposesExecution(t *testing.T) {
	engine := newTestEngine(t)
	ctx := testContext(t)

	var (
		events []string
		self   *Execution[int]
	)
	factory, err := NewFactory(engine, func(ctx context.Context, _ struct{}) (int, error) {
		UseEffect(ctx, func() Teardown {
			events = append(events, `mount a`)
			self.TeardownAll()
			return func() { events = append(events, `teardown a`) }
		}, Deps{1})
		UseEffect(ctx, func() Teardown {
			events = append(events, `mount b`)
			return func() { events = append(events, `teardown b`) }
		}, Deps{1})
		UseEffect(ctx, func() Teardown {
			events = append(events, `mount c`)
			return nil
		}, nil)
		return 1, nil
	}, WithEntry(func(trigger func() error, _ func(hook SetHook)) error {
		// the handle must be known before the first pass flushes
		return engine.JS().QueueMicrotask(func() { _ = trigger() })
	}))
	require.NoError(t, err)

	onLoop(t, engine, func() {
		self, err = factory.Call(struct{}{})
		assert.NoError(t, err)
	})
	require.NoError(t, self.Wait(ctx, 0))

	assert.True(t, self.Disposed())
	assert.Equal(t, 1, self.Passes())
	onLoop(t, engine, func() {
		assert.Equal(t, []string{`mount a`, `teardown a`}, events)
	})

	require.NoError(t, self.Dispose(ctx))
	onLoop(t, engine, func() {
		assert.Equal(t, []string{`mount a`, `teardown a`}, events)
	})
}
