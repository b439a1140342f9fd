// Package threadstate implements picotm's thread-/per-transaction state
// (spec C7): a lazily-initialized value scoped to the calling goroutine,
// acquired on demand and released explicitly when the goroutine is done
// with it (Go offers no thread/goroutine-exit hook to run that release
// automatically, so callers — the transaction engine, and any module with
// per-thread state — must call Release themselves, typically via defer
// around the outermost Begin/Run call on that goroutine).
//
// Used to host the per-goroutine transaction record (internal/txn/engine)
// and any module's per-goroutine data.
package threadstate

import (
	"sync"

	"github.com/kolkov/picotm/internal/txn/goid"
)

// Of hosts one goroutine-local value of type T per goroutine, keyed by
// goid.Current(). Construct with New.
type Of[T any] struct {
	mu    sync.Mutex
	byGID map[int64]*T
	newFn func() *T
}

// New returns an Of whose per-goroutine value is constructed on demand by
// newFn.
func New[T any](newFn func() *T) *Of[T] {
	return &Of[T]{byGID: make(map[int64]*T), newFn: newFn}
}

// Acquire returns the calling goroutine's value, constructing it via newFn
// if init is true and no value exists yet. With init false, Acquire
// returns (nil, false) rather than constructing one — used by callers that
// only want to touch already-existing state (for example, a module
// checking whether this goroutine currently has a transaction open).
func (o *Of[T]) Acquire(init bool) (v *T, ok bool) {
	id := goid.Current()

	o.mu.Lock()
	defer o.mu.Unlock()

	if v, ok := o.byGID[id]; ok {
		return v, true
	}
	if !init {
		return nil, false
	}
	v = o.newFn()
	o.byGID[id] = v
	return v, true
}

// Release drops the calling goroutine's value, if any. It does not run any
// finalizer on the value itself; callers that need teardown logic (e.g. a
// module's release callback) must run it themselves before calling
// Release, or pass a T whose zero behavior needs no teardown.
func (o *Of[T]) Release() {
	id := goid.Current()
	o.mu.Lock()
	delete(o.byGID, id)
	o.mu.Unlock()
}
