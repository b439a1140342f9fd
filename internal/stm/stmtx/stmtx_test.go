package stmtx

import (
	"testing"
	"unsafe"

	"github.com/kolkov/picotm/internal/stm/framemap"
	"github.com/kolkov/picotm/internal/txn/txerror"
)

func TestLoadReadsLiveMemory(t *testing.T) {
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(i + 1)
	}

	tx := New(framemap.New())
	got, err := tx.Load(unsafe.Pointer(&buf[0]), 8)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i := range buf {
		if got[i] != buf[i] {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], buf[i])
		}
	}
}

func TestStoreIsBufferedUntilApply(t *testing.T) {
	var buf [8]byte

	tx := New(framemap.New())
	if err := tx.Store(unsafe.Pointer(&buf[0]), []byte{9, 9, 9, 9}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if buf[0] == 9 {
		t.Fatal("expected write-back store to not touch live memory before Apply")
	}

	if err := tx.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if buf[0] != 9 || buf[3] != 9 {
		t.Fatal("expected Apply to flush the buffered write into live memory")
	}
	if buf[4] != 0 {
		t.Fatal("expected bytes outside the stored range to be unchanged")
	}
}

func TestUndoDiscardsWriteBackStore(t *testing.T) {
	var buf [8]byte
	buf[0] = 42

	tx := New(framemap.New())
	if err := tx.Store(unsafe.Pointer(&buf[0]), []byte{1}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := tx.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if buf[0] != 42 {
		t.Fatal("expected Undo to leave live memory untouched by a write-back store")
	}
}

func TestLoadStoreCopiesAcrossAddresses(t *testing.T) {
	src := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	var dst [8]byte

	tx := New(framemap.New())
	if err := tx.LoadStore(unsafe.Pointer(&dst[0]), unsafe.Pointer(&src[0]), 8); err != nil {
		t.Fatalf("LoadStore: %v", err)
	}
	if err := tx.Apply(); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if dst != src {
		t.Fatalf("dst = %v, want %v", dst, src)
	}
}

func TestPrivatizeFlushesPendingWritesImmediately(t *testing.T) {
	var buf [8]byte

	tx := New(framemap.New())
	if err := tx.Store(unsafe.Pointer(&buf[0]), []byte{7, 7}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if buf[0] == 7 {
		t.Fatal("precondition: write-back store should not be live yet")
	}

	if err := tx.Privatize(unsafe.Pointer(&buf[0]), 8, PrivatizeStore); err != nil {
		t.Fatalf("Privatize: %v", err)
	}
	if buf[0] != 7 || buf[1] != 7 {
		t.Fatal("expected Privatize to flush the pending write-back buffer into live memory")
	}
}

func TestPrivatizeThenUndoRestoresPreImage(t *testing.T) {
	var buf [8]byte
	buf[0] = 5

	tx := New(framemap.New())
	if err := tx.Privatize(unsafe.Pointer(&buf[0]), 8, PrivatizeStore); err != nil {
		t.Fatalf("Privatize: %v", err)
	}
	buf[0] = 99 // simulate a write-through write landing directly in live memory

	if err := tx.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if buf[0] != 5 {
		t.Fatalf("buf[0] = %d, want 5 (restored pre-image)", buf[0])
	}
}

func TestPrivatizeAfterStoreThenUndoRestoresPreImage(t *testing.T) {
	buf := [8]byte{0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}

	tx := New(framemap.New())
	if err := tx.Store(unsafe.Pointer(&buf[0]), []byte{0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB, 0xBB}); err != nil {
		t.Fatalf("Store: %v", err)
	}
	if err := tx.Privatize(unsafe.Pointer(&buf[0]), 8, PrivatizeStore); err != nil {
		t.Fatalf("Privatize: %v", err)
	}
	if buf[0] != 0xBB {
		t.Fatal("expected Privatize to flush the staged store into live memory")
	}

	if err := tx.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	for i, b := range buf {
		if b != 0xAA {
			t.Fatalf("buf[%d] = 0x%02x, want 0xAA (pre-image restored)", i, b)
		}
	}
}

func TestPrivatizeUntilCharStopsAtTerminator(t *testing.T) {
	buf := [16]byte{'h', 'i', 0, 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x', 'x'}

	tx := New(framemap.New())
	if err := tx.PrivatizeUntilChar(unsafe.Pointer(&buf[0]), 0, PrivatizeLoad); err != nil {
		t.Fatalf("PrivatizeUntilChar: %v", err)
	}
	// Only the first block (containing the terminator) should have been
	// touched.
	if len(tx.pages) != 1 {
		t.Fatalf("touched %d pages, want 1 (terminator is within the first block)", len(tx.pages))
	}
}

func TestSecondTransactionConflictsOnWriteLockedBlock(t *testing.T) {
	frames := framemap.New()
	var buf [8]byte

	tx1 := New(frames)
	if err := tx1.Store(unsafe.Pointer(&buf[0]), []byte{1}); err != nil {
		t.Fatalf("tx1 Store: %v", err)
	}

	tx2 := New(frames)
	_, err := tx2.Load(unsafe.Pointer(&buf[0]), 1)
	if err == nil {
		t.Fatal("expected a conflict when tx2 reads a block tx1 holds the writer role on")
	}
	te, ok := err.(*txerror.Error)
	if !ok || te.Kind != txerror.KindConflicting {
		t.Fatalf("expected a conflicting txerror.Error, got %#v", err)
	}
}

func TestApplyReleasesLocksForNextTransaction(t *testing.T) {
	frames := framemap.New()
	var buf [8]byte

	tx1 := New(frames)
	if err := tx1.Store(unsafe.Pointer(&buf[0]), []byte{1}); err != nil {
		t.Fatalf("tx1 Store: %v", err)
	}
	if err := tx1.Apply(); err != nil {
		t.Fatalf("tx1 Apply: %v", err)
	}

	tx2 := New(frames)
	if _, err := tx2.Load(unsafe.Pointer(&buf[0]), 1); err != nil {
		t.Fatalf("tx2 Load after tx1 Apply released its locks: %v", err)
	}
}
