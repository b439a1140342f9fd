// Package framemap implements picotm's address-to-frame resolver (spec
// C12): a SharedTreemap (internal/txn/treemap) keyed by the high bits of a
// block index, whose leaf values are owning pointers to fixed-size tables
// of frame.Frame. Looking a frame up for an address is three steps: block
// index, top-level table key, index within the table.
package framemap

import (
	"github.com/kolkov/picotm/internal/stm/frame"
	"github.com/kolkov/picotm/internal/txn/sharedstate"
	"github.com/kolkov/picotm/internal/txn/treemap"
)

const (
	// BlockBits is log2 of the block size; 3 gives 8-byte blocks, matching
	// the 8-bit valid/written bitmaps used by internal/stm/page.
	BlockBits = 3
	// TblBits is log2 of the number of frames per leaf table.
	TblBits = 10
	// TblSize is the number of frames per leaf table (1 << TblBits).
	TblSize = 1 << TblBits

	// keyBits bounds the top-level table key: a 64-bit address yields at
	// most a 61-bit block index (64-BlockBits), and dropping the low
	// TblBits of that leaves at most 61-TblBits bits of table key.
	keyBits   = 61 - TblBits
	levelBits = 9
)

// table is one leaf of the tree: TblSize frames, densely covering a
// contiguous run of block indices.
type table struct {
	frames [TblSize]frame.Frame
}

func newTable(topKey uint64) *table {
	t := &table{}
	base := topKey << TblBits
	for i := range t.frames {
		t.frames[i].Init(base + uint64(i))
	}
	return t
}

// Map resolves addresses to frames, creating frames lazily and keeping them
// alive for the lifetime of the Map (spec.md §3: "never destroyed during
// normal operation").
type Map struct {
	tm *treemap.Map[*table]
}

// New returns an empty Map.
func New() *Map {
	return &Map{tm: treemap.New[*table](keyBits, levelBits)}
}

// BlockIndex returns the block index covering byte address addr.
func BlockIndex(addr uintptr) uint64 {
	return uint64(addr) >> BlockBits
}

// Lookup returns the frame for the block containing addr, creating the
// frame (and its containing table, and any intermediate directories) if
// this is the first time the block has been touched.
func (m *Map) Lookup(addr uintptr) *frame.Frame {
	return m.LookupBlock(BlockIndex(addr))
}

// LookupBlock is Lookup given an already-computed block index.
func (m *Map) LookupBlock(blockIndex uint64) *frame.Frame {
	topKey := blockIndex >> TblBits
	tbl := m.tm.FindValue(topKey, func(key uint64) *table {
		return newTable(key)
	}, nil)
	idx := blockIndex & (TblSize - 1)
	return &tbl.frames[idx]
}

// globalState hosts the process-wide frame map singleton behind the
// shared-state protocol (internal/txn/sharedstate, spec C6), per spec.md
// §9's Design Note that process-wide mutable state like the frame map
// belongs behind that protocol rather than an ad hoc sync.Once: frames
// must be shared across every transaction in the process regardless of
// which engine.Engine runs them, exactly like the C library's single
// global frame table, and the map is never torn down during normal
// operation, so uninit is a no-op and nothing ever calls Unref.
var globalState = sharedstate.New[*Map](
	func(m **Map) error { *m = New(); return nil },
	func(m **Map) {},
)

// Global returns the process-wide Map, creating it on first use.
func Global() *Map {
	m, _ := globalState.Ref()
	return *m
}
