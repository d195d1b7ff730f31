// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

// EffectFunc is an effect callback, see [UseEffect]. It returns the teardown
// for this mount, or nil if there is nothing to tear down.
type EffectFunc func() Teardown

// Teardown undoes a mounted effect.
type Teardown func()

type flushMode int

const (
	// flushSettle follows every pass: tears down stale mounts and (re)mounts.
	flushSettle flushMode = iota
	// flushCleanup runs after an asynchronous failure, so that dependency
	// driven effects are not left mounted.
	flushCleanup
	// flushUnmount tears down everything.
	flushUnmount
)

func (m flushMode) String() string {
	switch m {
	case flushSettle:
		return "settle"
	case flushCleanup:
		return "cleanup"
	case flushUnmount:
		return "unmount"
	default:
		return "unknown"
	}
}

type effectSlot struct {
	callback EffectFunc
	teardown Teardown
	deps     Deps
	// hasDeps is set once a non-nil dependency array has been recorded
	hasDeps bool
	// runOnMount is set by a pass whose deps differ from the previous pass
	runOnMount bool
	mountOnce  bool
	// mounted is set once a mount-once effect has run
	mounted bool
}

// flush walks the effect slots in call order. The first failure aborts the
// walk and is returned as an *EffectError.
//
// Nothing mounts once the execution is disposed. A callback that disposes its
// own execution ends the walk, and the teardown it returned runs at once.
func (x *execution) flush(mode flushMode) error {
	for i, fx := range x.effects {
		if mode != flushUnmount && x.disposed.Load() {
			return nil
		}

		if fx.teardown != nil && !fx.mountOnce {
			if err := fx.unmount(i); err != nil {
				return err
			}
		}

		if fx.mountOnce && fx.callback != nil && fx.teardown == nil && !fx.mounted {
			if err := x.mount(i, fx); err != nil {
				return err
			}
		}

		if mode == flushSettle && fx.runOnMount && fx.callback != nil {
			if err := x.mount(i, fx); err != nil {
				return err
			}
		}

		if mode == flushUnmount && fx.teardown != nil {
			if err := fx.unmount(i); err != nil {
				return err
			}
		}
	}
	return nil
}

func (x *execution) mount(slot int, fx *effectSlot) error {
	if x.disposed.Load() {
		return nil
	}
	if fx.mountOnce {
		fx.mounted = true
	}
	fx.runOnMount = false
	if err := fx.mount(slot); err != nil {
		return err
	}
	if x.disposed.Load() && fx.teardown != nil {
		return fx.unmount(slot)
	}
	return nil
}

func (fx *effectSlot) mount(slot int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &EffectError{Cause: recoverError(r), Phase: PhaseMount, Slot: slot}
		}
	}()
	fx.teardown = fx.callback()
	return nil
}

// unmount clears the teardown before calling it, so a failing teardown is
// never retried.
func (fx *effectSlot) unmount(slot int) (err error) {
	teardown := fx.teardown
	fx.teardown = nil
	defer func() {
		if r := recover(); r != nil {
			err = &EffectError{Cause: recoverError(r), Phase: PhaseTeardown, Slot: slot}
		}
	}()
	teardown()
	return nil
}
