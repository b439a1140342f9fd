// Package ref implements picotm's 16-bit reference counters, in both
// thread-local (Local16) and atomic shared (Shared16) flavors, as
// described in spec C3. Both report whether an increment was the first
// reference and whether a decrement was the last, so callers can hang
// init-on-first-ref / fini-on-last-ref logic off the return value instead
// of a separate check.
package ref

import "sync/atomic"

const maxCount = 1<<16 - 1

// Local16 is a non-atomic 16-bit reference counter for use from a single
// goroutine at a time (typically: one transaction's private bookkeeping).
// The zero value starts at a count of 0.
type Local16 struct {
	count uint16
}

// Up increments the counter and reports whether it was previously zero.
// It panics on overflow past the 16-bit range, which indicates a counting
// bug in the caller rather than a condition to recover from.
func (r *Local16) Up() (isFirst bool) {
	if r.count == maxCount {
		panic("ref: Local16 overflow")
	}
	isFirst = r.count == 0
	r.count++
	return isFirst
}

// Down decrements the counter and reports whether it reached zero. It
// panics on underflow (Down called more often than Up).
func (r *Local16) Down() (isLast bool) {
	if r.count == 0 {
		panic("ref: Local16 underflow")
	}
	r.count--
	return r.count == 0
}

// Count returns the current value of the counter.
func (r *Local16) Count() uint16 {
	return r.count
}

// Shared16 is an atomic 16-bit reference counter safe for concurrent use
// from multiple goroutines. The zero value starts at a count of 0.
type Shared16 struct {
	count atomic.Uint32
}

// Up increments the counter and reports whether it transitioned 0->1. It
// panics on overflow.
func (r *Shared16) Up() (isFirst bool) {
	old := r.count.Add(1) - 1
	if old == maxCount {
		panic("ref: Shared16 overflow")
	}
	return old == 0
}

// Down decrements the counter and reports whether it transitioned 1->0.
// It panics on underflow.
func (r *Shared16) Down() (isLast bool) {
	old := r.count.Add(^uint32(0)) + 1
	if old == 0 {
		panic("ref: Shared16 underflow")
	}
	return old == 1
}

// Count returns the current value of the counter.
func (r *Shared16) Count() uint16 {
	return uint16(r.count.Load())
}
