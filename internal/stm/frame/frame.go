// Package frame implements picotm's global per-block descriptor (spec
// C11): one Frame exists for every memory block any transaction has ever
// touched, holding the block's RW lock and a non-owning "owner hint" used
// only for diagnostics. Frames are created on first lookup and never
// destroyed during normal operation; they are owned and kept alive by the
// frame map (internal/stm/framemap).
package frame

import (
	"sync/atomic"

	"github.com/kolkov/picotm/internal/txn/rwlock"
)

// Frame is the global, shared descriptor for one block. The C layout packs
// the block index and a flags nibble into one word to hit a 16-byte frame;
// Go has no equivalent packing guarantee (and no reason to fight the
// allocator for it here), so the fields are kept separate and plain.
type Frame struct {
	blockIndex uint64
	ownerHint  atomic.Uintptr
	Lock       rwlock.RWLock
}

// New returns a Frame for the given block index, with its lock unlocked.
func New(blockIndex uint64) *Frame {
	return &Frame{blockIndex: blockIndex}
}

// Init sets f's block index in place. It exists so a table of Frame
// values (internal/stm/framemap) can be built by indexing into an
// already-allocated array and initializing each element where it lives,
// rather than constructing one with New and copying it over: Frame
// embeds an rwlock.RWLock and an atomic.Uintptr, and copying a Frame that
// way would copy those synchronization primitives too.
func (f *Frame) Init(blockIndex uint64) {
	f.blockIndex = blockIndex
}

// BlockIndex returns the block this frame describes. It is fixed for the
// lifetime of the frame.
func (f *Frame) BlockIndex() uint64 {
	return f.blockIndex
}

// OwnerHint returns the last transaction-supplied hint value, typically a
// lightweight identifier (e.g. a goroutine or module id) used only to bias
// conflict-reporting and debugging output; it never participates in
// mutual exclusion.
func (f *Frame) OwnerHint() uintptr {
	return f.ownerHint.Load()
}

// SetOwnerHint records a new hint value.
func (f *Frame) SetOwnerHint(hint uintptr) {
	f.ownerHint.Store(hint)
}
