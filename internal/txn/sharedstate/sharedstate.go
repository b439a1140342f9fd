// Package sharedstate implements picotm's shared-state lifecycle (spec
// C6): a process-wide named singleton whose initializer runs on the 0->1
// reference-count transition and whose finalizer runs on the 1->0
// transition, with concurrent refs/unrefs racing the same transition
// waiting for it to finish first.
//
// The original C implementation gets this behavior from a family of
// macros (PICOTM_SHARED_STATE / PICOTM_SHARED_STATE_STATIC_IMPL) that
// expand into a generated type plus ref/unref functions, because C has no
// generics. In Go, State[T] is simply a generic type parameterized by the
// payload and its init/uninit pair, instantiated once per named state —
// exactly the substitution spec.md's Design Notes §9 calls for.
package sharedstate

import (
	"runtime"
	"sync/atomic"
)

// phase tracks what a State is currently doing. Phase and reference count
// are packed into a single atomic word so that a transition claim (idle ->
// init/uninit) and the count change it guards are indivisible: no ref can
// observe "count == 1, phase == idle" while an unref's uninit is actually
// in flight, which is what made an earlier two-field version of this type
// racy.
type phase uint64

const (
	phaseIdle phase = iota
	phaseInit
	phaseUninit
)

const countBits = 32

func pack(p phase, count uint32) uint64 {
	return uint64(p)<<countBits | uint64(count)
}

func unpack(w uint64) (phase, uint32) {
	return phase(w >> countBits), uint32(w)
}

// State hosts a lazily-initialized, reference-counted singleton of type T.
// Construct with New; the zero value is not usable because it has no
// init/uninit callbacks.
type State[T any] struct {
	word   atomic.Uint64
	init   func(*T) error
	uninit func(*T)
	value  T
}

// New returns a State whose payload is initialized by init on first Ref
// and torn down by uninit on the matching last Unref.
func New[T any](init func(*T) error, uninit func(*T)) *State[T] {
	return &State[T]{init: init, uninit: uninit}
}

// Ref acquires a reference, running init if this is the first live
// reference. If init fails, the reference count is rolled back to zero and
// the error is returned; no payload pointer is handed out in that case.
func (s *State[T]) Ref() (*T, error) {
	for {
		w := s.word.Load()
		ph, count := unpack(w)

		if ph != phaseIdle {
			runtime.Gosched()
			continue
		}

		if count > 0 {
			if s.word.CompareAndSwap(w, pack(phaseIdle, count+1)) {
				return &s.value, nil
			}
			continue
		}

		// count == 0: attempt to claim the 0->1 transition.
		if !s.word.CompareAndSwap(w, pack(phaseInit, 0)) {
			continue
		}
		err := s.init(&s.value)
		if err != nil {
			s.word.Store(pack(phaseIdle, 0))
			return nil, err
		}
		s.word.Store(pack(phaseIdle, 1))
		return &s.value, nil
	}
}

// Unref releases a reference, running uninit if this was the last live
// reference.
func (s *State[T]) Unref() {
	for {
		w := s.word.Load()
		ph, count := unpack(w)

		if ph != phaseIdle {
			runtime.Gosched()
			continue
		}
		if count == 0 {
			panic("sharedstate: Unref with no outstanding reference")
		}

		if count > 1 {
			if s.word.CompareAndSwap(w, pack(phaseIdle, count-1)) {
				return
			}
			continue
		}

		// count == 1: attempt to claim the 1->0 transition.
		if !s.word.CompareAndSwap(w, pack(phaseUninit, 1)) {
			continue
		}
		s.uninit(&s.value)
		s.word.Store(pack(phaseIdle, 0))
		return
	}
}

// Count returns the current reference count, primarily for tests and
// diagnostics.
func (s *State[T]) Count() uint32 {
	_, count := unpack(s.word.Load())
	return count
}
