// Package page implements picotm's per-transaction block shadow (spec
// C13): the buffered or write-through view a transaction keeps of one
// block while it holds at least a reader role on the block's frame.
package page

import (
	"github.com/kolkov/picotm/internal/stm/frame"
	"github.com/kolkov/picotm/internal/txn/rwstate"
)

// BlockSize is the number of bytes a page shadows, matching
// framemap.BlockBits (8 bytes, one bit per byte in the valid/written
// bitmaps below).
const BlockSize = 8

// Mode selects how writes to a page are handled.
type Mode int

const (
	// WriteBack is the default: writes land in Buf and are copied into the
	// frame at commit.
	WriteBack Mode = iota
	// WriteThrough means Buf held the pre-image captured on first touch and
	// writes go directly to the live memory the frame describes; abort
	// restores the pre-image from Buf.
	WriteThrough
)

// Page is the per-transaction shadow of one block. It is created on first
// touch and freed (returned to a free-list) at transaction finish.
type Page struct {
	BlockIndex  uint64
	Frame       *frame.Frame
	State       rwstate.State
	Buf         [BlockSize]byte
	ValidBits   uint8 // which bytes of Buf hold data read from the frame
	WrittenBits uint8 // which bytes have been written since the page was acquired
	Mode        Mode
}

// New returns a fresh write-back page shadowing fr.
func New(blockIndex uint64, fr *frame.Frame) *Page {
	return &Page{BlockIndex: blockIndex, Frame: fr}
}

// Reset clears a page so it can be reused from a free-list for a different
// block/frame, avoiding an allocation per touched block per transaction.
func (p *Page) Reset(blockIndex uint64, fr *frame.Frame) {
	p.BlockIndex = blockIndex
	p.Frame = fr
	p.State = rwstate.State{}
	p.Buf = [BlockSize]byte{}
	p.ValidBits = 0
	p.WrittenBits = 0
	p.Mode = WriteBack
}

// IsFullyValid reports whether every byte of Buf has been populated from
// the frame.
func (p *Page) IsFullyValid() bool {
	return p.ValidBits == 0xff
}

// MarkValid records that the bytes covered by mask have been populated.
func (p *Page) MarkValid(mask uint8) {
	p.ValidBits |= mask
}

// MarkWritten records that the bytes covered by mask were written by the
// transaction.
func (p *Page) MarkWritten(mask uint8) {
	p.WrittenBits |= mask
}

// HasWrites reports whether any byte of the page has been written.
func (p *Page) HasWrites() bool {
	return p.WrittenBits != 0
}

// MaskFor returns the bitmask covering [offset, offset+length) within the
// block, clamped to the block's bounds.
func MaskFor(offset, length int) uint8 {
	var mask uint8
	for i := offset; i < offset+length && i < BlockSize; i++ {
		mask |= 1 << uint(i)
	}
	return mask
}
