// Package stmtx implements picotm's per-transaction STM engine (spec C14):
// load / store / loadstore / privatize / privatize_until_char over raw
// memory addresses, plus the apply (commit) and undo (abort) passes that
// flush or discard a transaction's pages.
//
// Addresses are unsafe.Pointer, matching the byte-addressed shared memory
// the C original operates on; callers are expected to pass pointers into
// memory that outlives the transaction, the same contract C gives its
// callers. This package is the one place in the module where that
// trade-off is unavoidable: transactional memory means transacting on
// real memory.
package stmtx

import (
	"sort"
	"unsafe"

	"github.com/kolkov/picotm/internal/stm/frame"
	"github.com/kolkov/picotm/internal/stm/framemap"
	"github.com/kolkov/picotm/internal/stm/page"
	"github.com/kolkov/picotm/internal/txn/rwstate"
	"github.com/kolkov/picotm/internal/txn/txerror"
)

// PrivatizeFlags selects which access mode a privatized region is prepared
// for.
type PrivatizeFlags int

const (
	// PrivatizeLoad prepares the region for reading only.
	PrivatizeLoad PrivatizeFlags = 1 << iota
	// PrivatizeStore additionally marks the region as written, so abort
	// restores its pre-image even if the transaction never wrote through
	// the normal Store path.
	PrivatizeStore
)

const blockSize = page.BlockSize

// Tx is one transaction's STM state: the pages it has touched, sorted by
// block index at apply/undo time, and a free-list so restarted attempts on
// the same goroutine don't reallocate a page per touched block.
type Tx struct {
	frames      *framemap.Map
	pageByBlock map[uint64]*page.Page
	pages       []*page.Page
	freeList    []*page.Page
}

// New returns a Tx resolving addresses through frames.
func New(frames *framemap.Map) *Tx {
	return &Tx{frames: frames, pageByBlock: make(map[uint64]*page.Page)}
}

func (tx *Tx) acquirePage(blockIndex uint64) *page.Page {
	if p, ok := tx.pageByBlock[blockIndex]; ok {
		return p
	}
	fr := tx.frames.LookupBlock(blockIndex)
	var p *page.Page
	if n := len(tx.freeList); n > 0 {
		p = tx.freeList[n-1]
		tx.freeList = tx.freeList[:n-1]
		p.Reset(blockIndex, fr)
	} else {
		p = page.New(blockIndex, fr)
	}
	tx.pageByBlock[blockIndex] = p
	tx.pages = append(tx.pages, p)
	return p
}

func conflict(f *frame.Frame) error {
	return txerror.Conflict(&f.Lock)
}

func blockBaseOf(blockIndex uint64) uintptr {
	return uintptr(blockIndex) << framemap.BlockBits
}

func copyFromMemory(p *page.Page, blockBase uintptr, mask uint8) {
	for i := 0; i < blockSize; i++ {
		if mask&(1<<uint(i)) != 0 {
			p.Buf[i] = *(*byte)(unsafe.Pointer(blockBase + uintptr(i)))
		}
	}
}

func copyToMemory(blockBase uintptr, data []byte) {
	for i, b := range data {
		*(*byte)(unsafe.Pointer(blockBase + uintptr(i))) = b
	}
}

// ensureFullyValid tops up p.Buf with any bytes not yet read from memory.
func ensureFullyValid(p *page.Page, blockBase uintptr) {
	if p.IsFullyValid() {
		return
	}
	missing := ^p.ValidBits
	copyFromMemory(p, blockBase, missing)
	p.MarkValid(missing)
}

// Load reads length bytes starting at addr, returning a freshly allocated
// copy. It breaks the request into block-aligned chunks, acquiring at
// least a reader role on every touched block.
func (tx *Tx) Load(addr unsafe.Pointer, length int) ([]byte, error) {
	out := make([]byte, length)
	base := uintptr(addr)
	off := 0
	for off < length {
		a := base + uintptr(off)
		blockIndex := framemap.BlockIndex(a)
		p := tx.acquirePage(blockIndex)

		if p.State.Mode() == rwstate.Unlocked {
			if !p.State.TryRLock(&p.Frame.Lock) {
				return nil, conflict(p.Frame)
			}
		}

		blockBase := blockBaseOf(blockIndex)
		blockOffset := int(a - blockBase)
		chunk := length - off
		if max := blockSize - blockOffset; chunk > max {
			chunk = max
		}

		if p.Mode == page.WriteThrough {
			// A privatized page's Buf holds the pre-image kept for Undo;
			// the transaction's current bytes are in live memory.
			for i := 0; i < chunk; i++ {
				out[off+i] = *(*byte)(unsafe.Pointer(a + uintptr(i)))
			}
			off += chunk
			continue
		}

		mask := page.MaskFor(blockOffset, chunk)
		if missing := mask &^ p.ValidBits; missing != 0 {
			copyFromMemory(p, blockBase, missing)
			p.MarkValid(missing)
		}

		copy(out[off:off+chunk], p.Buf[blockOffset:blockOffset+chunk])
		off += chunk
	}
	return out, nil
}

// Store writes data starting at addr, breaking the request into
// block-aligned chunks and acquiring (or upgrading to) the writer role on
// every touched block.
func (tx *Tx) Store(addr unsafe.Pointer, data []byte) error {
	base := uintptr(addr)
	off := 0
	for off < len(data) {
		a := base + uintptr(off)
		blockIndex := framemap.BlockIndex(a)
		p := tx.acquirePage(blockIndex)

		if !p.State.TryWLock(&p.Frame.Lock) {
			return conflict(p.Frame)
		}

		blockBase := blockBaseOf(blockIndex)
		if p.Mode == page.WriteBack {
			ensureFullyValid(p, blockBase)
		}

		blockOffset := int(a - blockBase)
		chunk := len(data) - off
		if max := blockSize - blockOffset; chunk > max {
			chunk = max
		}

		switch p.Mode {
		case page.WriteBack:
			copy(p.Buf[blockOffset:blockOffset+chunk], data[off:off+chunk])
		case page.WriteThrough:
			copyToMemory(blockBase+uintptr(blockOffset), data[off:off+chunk])
		}
		p.MarkWritten(page.MaskFor(blockOffset, chunk))
		off += chunk
	}
	return nil
}

// LoadStore copies length bytes from src to dst, chunk by chunk, so that
// overlapping transactional regions within the same address space observe
// each chunk's write before the next chunk is read (spec.md §4.14).
func (tx *Tx) LoadStore(dst, src unsafe.Pointer, length int) error {
	off := 0
	for off < length {
		chunk := length - off
		if chunk > blockSize {
			chunk = blockSize
		}
		buf, err := tx.Load(unsafe.Add(src, off), chunk)
		if err != nil {
			return err
		}
		if err := tx.Store(unsafe.Add(dst, off), buf); err != nil {
			return err
		}
		off += chunk
	}
	return nil
}

// Privatize marks [addr, addr+length) as owned exclusively by this
// transaction for its remainder: subsequent accesses through Load/Store on
// these blocks still go through the page, but the page itself switches to
// write-through so the live memory always reflects the transaction's
// tentative state.
func (tx *Tx) Privatize(addr unsafe.Pointer, length int, flags PrivatizeFlags) error {
	base := uintptr(addr)
	off := 0
	for off < length {
		a := base + uintptr(off)
		blockIndex := framemap.BlockIndex(a)
		blockBase := blockBaseOf(blockIndex)
		blockOffset := int(a - blockBase)
		chunk := length - off
		if max := blockSize - blockOffset; chunk > max {
			chunk = max
		}

		if err := tx.privatizeBlock(blockIndex, blockBase, flags); err != nil {
			return err
		}
		off += chunk
	}
	return nil
}

// PrivatizeUntilChar is Privatize, except the region's length is determined
// by scanning forward (inclusive) for the first byte equal to c.
func (tx *Tx) PrivatizeUntilChar(addr unsafe.Pointer, c byte, flags PrivatizeFlags) error {
	base := uintptr(addr)
	off := 0
	for {
		a := base + uintptr(off)
		blockIndex := framemap.BlockIndex(a)
		blockBase := blockBaseOf(blockIndex)
		blockOffset := int(a - blockBase)

		p := tx.acquirePage(blockIndex)
		if !p.State.TryWLock(&p.Frame.Lock) {
			return conflict(p.Frame)
		}
		ensureFullyValid(p, blockBase)

		found := -1
		for i := blockOffset; i < blockSize; i++ {
			if p.Buf[i] == c {
				found = i
				break
			}
		}

		privatizePreparedPage(p, blockBase, flags)

		if found >= 0 {
			return nil
		}
		off += blockSize - blockOffset
	}
}

func (tx *Tx) privatizeBlock(blockIndex uint64, blockBase uintptr, flags PrivatizeFlags) error {
	p := tx.acquirePage(blockIndex)
	if !p.State.TryWLock(&p.Frame.Lock) {
		return conflict(p.Frame)
	}
	ensureFullyValid(p, blockBase)
	privatizePreparedPage(p, blockBase, flags)
	return nil
}

// privatizePreparedPage runs steps 3-5 of spec.md §4.14's privatize
// algorithm on a page that already holds the writer role and a fully
// valid buffer. If the page has staged write-back writes, p.Buf and the
// frame's live bytes are swapped rather than one-way copied: the staged
// writes land in memory (so Privatize's caller sees them through direct
// access) and the pre-image they would have overwritten ends up in
// p.Buf, where Undo expects to find a write-through page's pre-image.
func privatizePreparedPage(p *page.Page, blockBase uintptr, flags PrivatizeFlags) {
	if p.Mode == page.WriteBack {
		if p.HasWrites() {
			var preImage [blockSize]byte
			for i := range preImage {
				preImage[i] = *(*byte)(unsafe.Pointer(blockBase + uintptr(i)))
			}
			copyToMemory(blockBase, p.Buf[:])
			p.Buf = preImage
		}
		p.Mode = page.WriteThrough
	}
	if flags&PrivatizeStore != 0 {
		p.MarkWritten(0xff)
	}
}

// Apply flushes every write-back page with pending writes into its frame's
// backing memory, then releases every page's lock and returns the pages to
// the free-list. Write-through pages need no flush: their writes already
// landed in live memory.
func (tx *Tx) Apply() error {
	sortPagesByBlockIndex(tx.pages)
	for _, p := range tx.pages {
		if p.Mode == page.WriteBack && p.HasWrites() {
			copyToMemory(blockBaseOf(p.BlockIndex), p.Buf[:])
		}
	}
	tx.releaseAndFree()
	return nil
}

// Undo restores every write-through page's pre-image (undoing its in-place
// writes) and discards every write-back page's buffer, then releases every
// page's lock and returns the pages to the free-list.
func (tx *Tx) Undo() error {
	for _, p := range tx.pages {
		if p.Mode == page.WriteThrough && p.HasWrites() {
			copyToMemory(blockBaseOf(p.BlockIndex), p.Buf[:])
		}
	}
	tx.releaseAndFree()
	return nil
}

func (tx *Tx) releaseAndFree() {
	for _, p := range tx.pages {
		p.State.Unlock()
		tx.freeList = append(tx.freeList, p)
	}
	tx.pages = tx.pages[:0]
	for k := range tx.pageByBlock {
		delete(tx.pageByBlock, k)
	}
}

func sortPagesByBlockIndex(pages []*page.Page) {
	sort.Slice(pages, func(i, j int) bool {
		return pages[i].BlockIndex < pages[j].BlockIndex
	})
}
