// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

// Stack tracks the executions whose body is currently running, innermost
// last. It is not safe for concurrent use; an [Engine] only touches it from
// its loop goroutine.
//
// Pop removes by identity rather than from the top, leaving an empty marker,
// so that non-strict nesting (an inner execution finishing after its outer
// one was popped) cannot corrupt the lookup of the current execution.
type Stack struct {
	entries []*execution
}

// NewStack returns an empty Stack, for use with [WithStack].
func NewStack() *Stack {
	return &Stack{}
}

// Depth returns the number of active (non-empty) entries.
func (s *Stack) Depth() (n int) {
	for _, x := range s.entries {
		if x != nil {
			n++
		}
	}
	return
}

func (s *Stack) push(x *execution) {
	s.entries = append(s.entries, x)
}

func (s *Stack) pop(x *execution) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i] == x {
			s.entries[i] = nil
			break
		}
	}
	// trailing markers carry no information
	n := len(s.entries)
	for n > 0 && s.entries[n-1] == nil {
		n--
	}
	clear(s.entries[n:])
	s.entries = s.entries[:n]
}

// current returns the most recently pushed entry that has not been popped.
func (s *Stack) current() (*execution, error) {
	if s != nil {
		for i := len(s.entries) - 1; i >= 0; i-- {
			if x := s.entries[i]; x != nil {
				return x, nil
			}
		}
	}
	return nil, ErrNoActiveExecution
}
