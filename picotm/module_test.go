package picotm

import (
	"errors"
	"testing"
	"unsafe"
)

func TestBeginCommitsOnSuccess(t *testing.T) {
	defer Release()

	var buf [8]byte
	err := Begin(func(tx *Tx) error {
		return tx.Store(unsafe.Pointer(&buf[0]), []byte{1, 2, 3})
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if buf[0] != 1 || buf[1] != 2 || buf[2] != 3 {
		t.Fatalf("buf = %v, want committed store visible in live memory", buf)
	}
}

func TestBeginRetriesOnConflict(t *testing.T) {
	defer Release()

	attempts := 0
	err := Begin(func(tx *Tx) error {
		attempts++
		if attempts < 2 {
			return tx.ResolveConflict(nil)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestBeginEscalatesToIrrevocable(t *testing.T) {
	defer Release()

	var sawIrrevocable bool
	err := Begin(func(tx *Tx) error {
		if !tx.IsIrrevocable() {
			return tx.Irrevocable()
		}
		sawIrrevocable = true
		return nil
	})
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if !sawIrrevocable {
		t.Fatal("expected the retried attempt to observe irrevocable mode")
	}
}

func TestSurfacesNonRecoverableError(t *testing.T) {
	defer Release()

	sentinel := errors.New("fatal")
	err := Begin(func(tx *Tx) error {
		return sentinel
	})
	if err != sentinel {
		t.Fatalf("Begin error = %v, want sentinel", err)
	}
}

func TestSTMModuleRegistersOnceAcrossTransactions(t *testing.T) {
	defer Release()

	var firstID, secondID ModuleID
	if err := Begin(func(tx *Tx) error {
		pg, _ := perGoStates.Acquire(true)
		firstID = pg.stmModuleID
		return nil
	}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := Begin(func(tx *Tx) error {
		pg, _ := perGoStates.Acquire(true)
		secondID = pg.stmModuleID
		return nil
	}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if firstID != secondID {
		t.Fatalf("expected the STM module to keep the same id across transactions, got %d and %d", firstID, secondID)
	}
}

func TestReleaseDropsPerGoroutineState(t *testing.T) {
	if err := Begin(func(tx *Tx) error { return nil }); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	Release()
	if _, ok := perGoStates.Acquire(false); ok {
		t.Fatal("expected Release to drop this goroutine's state")
	}
}
