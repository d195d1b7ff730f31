// Package reactor runs plain functions ("bodies") repeatedly, letting them
// keep private, positionally addressed state between runs, and re-running
// them automatically until that state stops changing.
//
// # Model
//
// A [Factory] binds a [Body] to an [Engine]. Each call of the factory creates
// an [Execution], bound to one set of arguments, and runs its first pass.
// Inside the body, accessors address slots purely by call order:
//
//   - [UseState] returns a value and a [Setter]
//   - [UseMemo] caches a computation until its [Deps] change
//   - [UseRef] returns a stable mutable [Ref]
//   - [UseEffect] mounts a side effect after the pass, with a [Teardown]
//   - [OnError] registers the handler for asynchronous failures
//
// Every pass must call accessors in the same order and number, otherwise it
// fails with [ErrUnstableCallShape].
//
// # Convergence
//
// Setters never run the body themselves. Each write queues a single check,
// at the next microtask, comparing state against a snapshot taken at the
// start of the latest pass (see [Equal]); if they differ, another pass runs.
// Any number of writes before the check are coalesced. [Execution.Settle]
// (or [Execution.Wait], outside the loop) waits for this process to quiesce.
//
// # Threading
//
// Engines are built on [eventloop.Loop], from
// github.com/joeycumines/go-eventloop. Passes, flushes, setters and
// accessors all run on the loop goroutine, so no locking is involved.
// [Factory.Start], [Execution.Wait], [Execution.Dispose] and [Engine.Submit]
// are the entry points for other goroutines.
//
// # Usage
//
//	loop, err := eventloop.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go loop.Run(ctx)
//	defer loop.Shutdown(context.Background())
//
//	engine, err := reactor.New(loop)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	counter, err := reactor.NewFactory(engine, func(ctx context.Context, limit int) (int, error) {
//	    v, set := reactor.UseState(ctx, 0)
//	    if v < limit {
//	        set.Set(v + 1)
//	    }
//	    return v, nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	execution, err := counter.Start(ctx, 3)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := execution.Wait(ctx, 0); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(execution.Result()) // 3
package reactor
