// Package rwlock implements picotm's reader/writer lock primitive.
//
// A RWLock is the building block that the STM frame map (internal/stm/frame)
// and any module wanting two-phase-locked shared state acquire on behalf of
// a transaction. Unlike sync.RWMutex, it never blocks: every acquisition
// that cannot succeed immediately fails (the Try methods report false), and the caller is
// expected to restart its transaction rather than wait. Blocking here would
// let one transaction hold a lock while waiting on another, which is
// exactly the condition that produces deadlock across independently
// developed modules.
package rwlock

import "sync/atomic"

// maxReaders bounds the reader count so it can never collide with the
// writer sentinel below. It also means a pathological transaction that
// somehow acquires the same lock as reader about a billion times will start
// seeing conflicts rather than overflowing the counter.
const maxReaders = writerSentinel - 1

// writerSentinel is the value of n that marks the lock as writer-held.
// Any value in [1, writerSentinel) denotes that many concurrent readers.
const writerSentinel = 1 << 30

// RWLock is a single-word reader/writer lock with immediate-failure
// semantics. The zero value is an unlocked lock, ready to use.
type RWLock struct {
	n atomic.Uint32
}

// New returns an unlocked RWLock. Using the zero value directly works just
// as well; New exists for symmetry with the rest of the package's
// constructors.
func New() *RWLock {
	return &RWLock{}
}

// TryRLock attempts to acquire a reader slot. It reports whether the lock
// was acquired; on false the caller holds no lock and should treat this as
// a conflict.
func (l *RWLock) TryRLock() bool {
	for {
		n := l.n.Load()
		if n >= maxReaders {
			return false
		}
		if l.n.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// TryWLock attempts to acquire the writer role. With upgrade set, the
// caller must already hold the sole reader slot (n == 1); the call promotes
// that single reader to a writer. Without upgrade, the call only succeeds
// against an unlocked lock (n == 0). It reports whether the lock was
// acquired.
func (l *RWLock) TryWLock(upgrade bool) bool {
	if upgrade {
		return l.n.CompareAndSwap(1, writerSentinel)
	}
	return l.n.CompareAndSwap(0, writerSentinel)
}

// Unlock releases a previously acquired role, reader or writer. It must be
// called exactly once per successful TryRLock/TryWLock; the lock itself
// does not remember which role the caller held; that bookkeeping is the job
// of rwstate.State, which calls this method at most once per transaction.
func (l *RWLock) Unlock() {
	for {
		n := l.n.Load()
		switch {
		case n == writerSentinel:
			if l.n.CompareAndSwap(n, 0) {
				return
			}
		case n > 0:
			if l.n.CompareAndSwap(n, n-1) {
				return
			}
		default:
			panic("rwlock: unlock of unlocked lock")
		}
	}
}

// IsWriteLocked reports whether the lock is currently held by a writer.
// Primarily useful for tests and diagnostics.
func (l *RWLock) IsWriteLocked() bool {
	return l.n.Load() == writerSentinel
}

// ReaderCount returns the number of readers currently holding the lock, or
// 0 if it is unlocked or writer-held. Primarily useful for tests and
// diagnostics.
func (l *RWLock) ReaderCount() uint32 {
	n := l.n.Load()
	if n == writerSentinel {
		return 0
	}
	return n
}
