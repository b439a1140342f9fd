package picotm

import (
	"unsafe"

	"github.com/kolkov/picotm/internal/stm/stmtx"
)

// PrivatizeFlags selects which access mode a privatized region is prepared
// for; see Tx.Privatize.
type PrivatizeFlags = stmtx.PrivatizeFlags

const (
	// PrivatizeLoad prepares a region for reading only.
	PrivatizeLoad = stmtx.PrivatizeLoad
	// PrivatizeStore additionally marks a region as written, so an abort
	// restores its pre-image even without an explicit Store call.
	PrivatizeStore = stmtx.PrivatizeStore
)

// Load reads length bytes starting at addr as part of the transaction,
// returning a fresh copy. A conflicting concurrent writer causes Load to
// return an error that the caller must propagate to Begin's body so the
// engine can restart the attempt.
func (tx *Tx) Load(addr unsafe.Pointer, length int) ([]byte, error) {
	return tx.stm.Load(addr, length)
}

// Store writes data starting at addr as part of the transaction. Writes
// are buffered (write-back) by default and become visible to other
// transactions only once this transaction commits.
func (tx *Tx) Store(addr unsafe.Pointer, data []byte) error {
	return tx.stm.Store(addr, data)
}

// LoadStore copies length bytes from src to dst as part of the
// transaction, chunk by chunk, so that overlapping source and destination
// regions are handled the way a block-by-block memmove would be.
func (tx *Tx) LoadStore(dst, src unsafe.Pointer, length int) error {
	return tx.stm.LoadStore(dst, src, length)
}

// Privatize marks [addr, addr+length) as owned exclusively by this
// transaction for its remainder: the region switches to write-through
// mode, so further writes through Store land directly in live memory
// while still being captured for undo.
func (tx *Tx) Privatize(addr unsafe.Pointer, length int, flags PrivatizeFlags) error {
	return tx.stm.Privatize(addr, length, flags)
}

// PrivatizeUntilChar is Privatize, except the region's length is
// determined by scanning forward (inclusive) for the first byte equal to
// c, the way a transactional strlen/strcpy-style operation would.
func (tx *Tx) PrivatizeUntilChar(addr unsafe.Pointer, c byte, flags PrivatizeFlags) error {
	return tx.stm.PrivatizeUntilChar(addr, c, flags)
}
