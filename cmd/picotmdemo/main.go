// Package main implements picotmdemo, a small CLI that exercises the
// transaction manager end to end against scenarios S1-S6 from spec.md §8,
// printing each one's outcome via internal/txn/diag.
//
// Usage:
//
//	picotmdemo <scenario>
//	picotmdemo all
//
// Scenarios: s1 (load/store round trip), s2 (conflict and restart), s3
// (undo restores memory), s4 (privatize write-through), s5 (revocable
// upgrade), s6 (event log ordering).
package main

import (
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/kolkov/picotm/internal/txn/diag"
	"github.com/kolkov/picotm/internal/txn/txerror"
	"github.com/kolkov/picotm/picotm"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	scenarios := map[string]func(){
		"s1": scenarioS1,
		"s2": scenarioS2,
		"s3": scenarioS3,
		"s4": scenarioS4,
		"s5": scenarioS5,
		"s6": scenarioS6,
	}

	switch arg := os.Args[1]; arg {
	case "all":
		for _, name := range []string{"s1", "s2", "s3", "s4", "s5", "s6"} {
			fmt.Printf("--- %s ---\n", name)
			scenarios[name]()
		}
	case "help", "--help", "-h":
		printUsage()
	default:
		fn, ok := scenarios[arg]
		if !ok {
			fmt.Fprintf(os.Stderr, "unknown scenario: %s\n\n", arg)
			printUsage()
			os.Exit(1)
		}
		fn()
	}
}

func printUsage() {
	fmt.Print(`picotmdemo - exercises the transaction manager end to end

USAGE:
    picotmdemo <scenario>
    picotmdemo all

SCENARIOS:
    s1    single-thread load/store round trip
    s2    conflict and restart
    s3    undo restores memory
    s4    privatize write-through
    s5    revocable upgrade
    s6    event log ordering
    all   run every scenario in order
`)
}

// report runs one Begin call, counting attempts via the mode observed on
// each invocation of body, and prints a diag.Report summarising it.
func report(label string, begin func(countAttempt func(picotm.Mode)) error) {
	attempts := 0
	var lastMode picotm.Mode
	err := begin(func(m picotm.Mode) {
		attempts++
		lastMode = m
	})

	var r *diag.Report
	if err != nil {
		r = diag.Recovered(attempts, lastMode, err)
	} else {
		r = diag.Committed(attempts, lastMode)
	}
	fmt.Printf("%s: %s", label, r)
}

// scenarioS1 stores 0x11 0x22 0x33 at offset 0 of an 8-byte region
// initialized to zero, then reads it back outside the transaction.
func scenarioS1() {
	defer picotm.Release()

	mem := make([]byte, 8)
	report("S1 load/store round trip", func(countAttempt func(picotm.Mode)) error {
		return picotm.Begin(func(tx *picotm.Tx) error {
			countAttempt(tx.Mode())
			return tx.Store(unsafe.Pointer(&mem[0]), []byte{0x11, 0x22, 0x33})
		})
	})
	fmt.Printf("  memory = % x\n", mem)
}

// scenarioS2 runs a writer and a reader against the same address
// concurrently; whichever locks the block first commits, the other
// conflicts and restarts. The reader observes the written value only if
// the writer committed first; the output reports what it saw.
func scenarioS2() {
	defer picotm.Release()

	mem := make([]byte, 8)
	addr := unsafe.Pointer(&mem[0])

	var wg sync.WaitGroup
	start := make(chan struct{})
	writerAttempts, readerAttempts := 0, 0
	var readerSawValue byte

	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_ = picotm.Begin(func(tx *picotm.Tx) error {
			writerAttempts++
			return tx.Store(addr, []byte{0x42})
		})
	}()
	go func() {
		defer wg.Done()
		<-start
		_ = picotm.Begin(func(tx *picotm.Tx) error {
			readerAttempts++
			got, err := tx.Load(addr, 1)
			if err != nil {
				return err
			}
			readerSawValue = got[0]
			return nil
		})
	}()
	close(start)
	wg.Wait()

	fmt.Printf("S2 conflict and restart: writer attempts=%d reader attempts=%d\n", writerAttempts, readerAttempts)
	fmt.Printf("  final memory = % x, reader's last observed byte = 0x%02x\n", mem, readerSawValue)
}

// scenarioS3 stores 0xBB across an 8-byte region initialized to 0xAA,
// then raises a non-recoverable error so the store is undone.
func scenarioS3() {
	defer picotm.Release()

	mem := make([]byte, 8)
	for i := range mem {
		mem[i] = 0xAA
	}
	addr := unsafe.Pointer(&mem[0])

	report("S3 undo restores memory", func(countAttempt func(picotm.Mode)) error {
		return picotm.Begin(func(tx *picotm.Tx) error {
			countAttempt(tx.Mode())
			fill := make([]byte, 8)
			for i := range fill {
				fill[i] = 0xBB
			}
			if err := tx.Store(addr, fill); err != nil {
				return err
			}
			return txerror.CodeError(txerror.CodeGeneral, "scenarioS3: forced failure")
		})
	})
	fmt.Printf("  memory = % x\n", mem)
}

// scenarioS4 privatizes a single byte for writing, writes it directly
// (bypassing the write-back buffer), then aborts; the pre-image captured
// at privatize time is restored.
func scenarioS4() {
	defer picotm.Release()

	mem := []byte{0x00}
	addr := unsafe.Pointer(&mem[0])

	report("S4 privatize write-through", func(countAttempt func(picotm.Mode)) error {
		return picotm.Begin(func(tx *picotm.Tx) error {
			countAttempt(tx.Mode())
			if err := tx.Privatize(addr, 1, picotm.PrivatizeStore); err != nil {
				return err
			}
			mem[0] = 0x55
			return txerror.CodeError(txerror.CodeGeneral, "scenarioS4: forced failure")
		})
	})
	fmt.Printf("  memory = % x\n", mem)
}

// scenarioS5 invokes Irrevocable until the engine grants it, demonstrating
// the restart-into-irrevocable-mode escalation path.
func scenarioS5() {
	defer picotm.Release()

	report("S5 revocable upgrade", func(countAttempt func(picotm.Mode)) error {
		return picotm.Begin(func(tx *picotm.Tx) error {
			countAttempt(tx.Mode())
			if err := tx.Irrevocable(); err != nil {
				return err
			}
			if !tx.IsIrrevocable() {
				return txerror.CodeError(txerror.CodeGeneral, "scenarioS5: expected irrevocable mode")
			}
			return nil
		})
	})
}

// scenarioS6 appends three events under one module, committing to observe
// apply_event's forward order, then repeats and forces an abort to observe
// undo_event's reverse order.
func scenarioS6() {
	defer picotm.Release()

	var applied, undone []uintptr

	registerLogger := func(tx *picotm.Tx) picotm.ModuleID {
		return tx.RegisterModule(picotm.ModuleOps{
			ApplyEvent: func(data any, head uint16, tail uintptr) error {
				applied = append(applied, tail)
				return nil
			},
			UndoEvent: func(data any, head uint16, tail uintptr) error {
				undone = append(undone, tail)
				return nil
			},
		}, nil)
	}

	err := picotm.Begin(func(tx *picotm.Tx) error {
		id := registerLogger(tx)
		tx.AppendEvent(id, 0, 1)
		tx.AppendEvent(id, 0, 2)
		tx.AppendEvent(id, 0, 3)
		return nil
	})
	if err != nil {
		fmt.Printf("S6 event log ordering: Begin (commit) failed: %v\n", err)
		return
	}
	fmt.Printf("S6 event log ordering: applied order = %v\n", applied)

	attempts := 0
	err = picotm.Begin(func(tx *picotm.Tx) error {
		attempts++
		id := registerLogger(tx)
		tx.AppendEvent(id, 0, 1)
		tx.AppendEvent(id, 0, 2)
		tx.AppendEvent(id, 0, 3)
		return txerror.CodeError(txerror.CodeGeneral, "scenarioS6: forced abort")
	})
	if err == nil {
		fmt.Println("S6 event log ordering: expected the second attempt to fail")
		return
	}
	fmt.Printf("  undone order = %v (after %d attempt(s))\n", undone, attempts)
}
