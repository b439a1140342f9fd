// Package rwstate tracks, per transaction, which role (if any) the
// transaction currently holds on a given rwlock.RWLock. The lock itself
// has no notion of "which transaction" acquired it; that bookkeeping lives
// here so that a transaction's finish step knows exactly how to release
// every lock it touched.
package rwstate

import "github.com/kolkov/picotm/internal/txn/rwlock"

// Mode is the role a transaction holds on a lock.
type Mode int

const (
	// Unlocked is the initial and final state: no role held.
	Unlocked Mode = iota
	// RDLocked means the transaction holds the reader role.
	RDLocked
	// WRLocked means the transaction holds the writer role.
	WRLocked
)

func (m Mode) String() string {
	switch m {
	case Unlocked:
		return "unlocked"
	case RDLocked:
		return "rdlocked"
	case WRLocked:
		return "wrlocked"
	default:
		return "invalid"
	}
}

// State is the per-(transaction, lock) role tracker described in spec
// C2. The zero value is Unlocked and ready to use.
type State struct {
	lock *rwlock.RWLock
	mode Mode
}

// Mode reports the role currently held.
func (s *State) Mode() Mode {
	return s.mode
}

// TryRLock acquires the reader role on lock if not already holding a role.
// From RDLocked or WRLocked this is a no-op success (the transaction
// already has at least reader access). It reports false on conflict.
func (s *State) TryRLock(lock *rwlock.RWLock) bool {
	switch s.mode {
	case RDLocked, WRLocked:
		return true
	}
	if !lock.TryRLock() {
		return false
	}
	s.lock = lock
	s.mode = RDLocked
	return true
}

// TryWLock acquires the writer role on lock. From Unlocked it takes a
// fresh writer lock; from RDLocked it upgrades the held reader lock to a
// writer lock (spec.md's "at most one reader-upgrade per lock" — it
// panics if the upgrade is requested against a different lock than the
// one the reader role is held on, since the underlying rwlock.RWLock
// has no per-transaction identity of its own to check this itself). From
// WRLocked this is a no-op success. It reports false on conflict.
func (s *State) TryWLock(lock *rwlock.RWLock) bool {
	switch s.mode {
	case WRLocked:
		return true
	case RDLocked:
		assertSameLock(s.lock, lock)
		if !lock.TryWLock(true) {
			return false
		}
		s.mode = WRLocked
		return true
	default:
		if !lock.TryWLock(false) {
			return false
		}
		s.lock = lock
		s.mode = WRLocked
		return true
	}
}

// Unlock releases whatever role is held and returns the state to Unlocked.
// Calling Unlock on an already-Unlocked state is a harmless no-op, matching
// a transaction that never touched this lock.
func (s *State) Unlock() {
	if s.mode == Unlocked {
		return
	}
	s.lock.Unlock()
	s.lock = nil
	s.mode = Unlocked
}

func assertSameLock(held, requested *rwlock.RWLock) {
	if held != requested {
		panic("rwstate: writer upgrade requested against a different lock than the held reader role")
	}
}
