package reactor

import (
	"context"
	"testing"
	"time"

	"github.com/joeycumines/go-eventloop"
	"github.com/stretchr/testify/require"
)

// newTestEngine creates an engine on a running loop, which is shut down when
// the test completes.
func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	loop, err := eventloop.New()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()

	t.Cleanup(func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = loop.Shutdown(shutdownCtx)
		cancel()
		<-done
	})

	engine, err := New(loop, opts...)
	require.NoError(t, err)
	return engine
}

// testContext returns a context bounding each test's waits.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// onLoop runs fn on the loop goroutine and waits for it.
func onLoop(t *testing.T, engine *Engine, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, engine.Submit(func() {
		defer close(done)
		fn()
	}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for loop")
	}
}

// start creates a factory for body and starts an execution with args.
func start[A, R any](t *testing.T, engine *Engine, body Body[A, R], args A, opts ...FactoryOption) *Execution[R] {
	t.Helper()
	factory, err := NewFactory(engine, body, opts...)
	require.NoError(t, err)
	execution, err := factory.Start(testContext(t), args)
	require.NoError(t, err)
	return execution
}
