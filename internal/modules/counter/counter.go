// Package counter is a small illustrative module exercising the event-log
// side of the module contract (spec C9/C15): a transactional counter whose
// state lives outside the STM entirely, adjusted only through ApplyEvent,
// which runs once per committed attempt, so an aborted or restarted
// attempt never touches the counter in the first place and there is
// nothing for UndoEvent to reverse.
package counter

import (
	"sync"

	"github.com/kolkov/picotm/internal/txn/threadstate"
	"github.com/kolkov/picotm/picotm"
)

// opIncrement is the only event opcode this module logs.
const opIncrement uint16 = 1

// perGoroutine caches whether this goroutine has already registered the
// module with its current transaction record, so repeated calls to Add
// within (or across) transactions on the same goroutine don't grow the
// registry with duplicate registrations.
type perGoroutine struct {
	moduleID   picotm.ModuleID
	registered bool
}

// Counter is a transactional counter. The zero value is not usable; build
// one with New.
type Counter struct {
	mu     sync.Mutex
	value  int64
	states *threadstate.Of[perGoroutine]
}

// New returns a Counter starting at zero.
func New() *Counter {
	return &Counter{states: threadstate.New(func() *perGoroutine { return &perGoroutine{} })}
}

// Value returns the counter's current committed value.
func (c *Counter) Value() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Add records a pending increment of delta. It takes effect only if tx
// commits; an aborted or restarted attempt's log is cleared before the
// increment is ever applied, so it simply never happens.
func (c *Counter) Add(tx *picotm.Tx, delta int64) {
	id := c.ensureRegistered(tx)
	tx.AppendEvent(id, opIncrement, uintptr(delta))
}

func (c *Counter) ensureRegistered(tx *picotm.Tx) picotm.ModuleID {
	st, _ := c.states.Acquire(true)
	if st.registered {
		return st.moduleID
	}
	st.moduleID = tx.RegisterModule(picotm.ModuleOps{
		ApplyEvent: func(data any, head uint16, tail uintptr) error {
			if head != opIncrement {
				return nil
			}
			c.mu.Lock()
			c.value += int64(tail)
			c.mu.Unlock()
			return nil
		},
		Release: func(data any) {
			c.states.Release()
		},
	}, nil)
	st.registered = true
	return st.moduleID
}
