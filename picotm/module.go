// Package picotm provides the public API for the system-level transaction
// manager: begin/commit/abort/restart for transactions, module
// registration for pluggable transactional subsystems, and the
// software-transactional-memory primitives every module (or application)
// may use to read and write shared memory transactionally.
//
// See doc.go for an overview and example_test.go for runnable examples.
package picotm

import (
	"github.com/kolkov/picotm/internal/stm/framemap"
	"github.com/kolkov/picotm/internal/stm/stmtx"
	"github.com/kolkov/picotm/internal/txn/engine"
	"github.com/kolkov/picotm/internal/txn/modreg"
	"github.com/kolkov/picotm/internal/txn/rwlock"
	"github.com/kolkov/picotm/internal/txn/threadstate"
)

// ModuleOps is a module's vtable of optional transactional callbacks. See
// internal/txn/modreg.Ops for the exact contract each callback must honor.
type ModuleOps = modreg.Ops

// ModuleID identifies a module registered with a transaction.
type ModuleID = modreg.ID

// Mode is the mode a transaction attempt runs under, passed to a module's
// Begin callback.
type Mode = modreg.Mode

const (
	ModeStart       = modreg.ModeStart
	ModeRetry       = modreg.ModeRetry
	ModeIrrevocable = modreg.ModeIrrevocable
	ModeRecovery    = modreg.ModeRecovery
)

// Tx is the transaction handle passed to the body function given to Begin.
// It carries both the module/event-log core (internal/txn/engine) and the
// per-transaction STM state (internal/stm/stmtx) that every registered
// module, and the application itself, can use to access shared memory.
type Tx struct {
	core *engine.Tx
	stm  *stmtx.Tx
}

// RegisterModule registers a module's vtable and opaque data with the
// running transaction, returning its module ID for use with AppendEvent.
// Registration is per-goroutine and survives restarts of the same Begin
// call; it is dropped only by Release.
func (tx *Tx) RegisterModule(ops ModuleOps, data any) ModuleID {
	return tx.core.RegisterModule(ops, data)
}

// AppendEvent records one opaque event under module in the transaction's
// log. Events are replayed via the module's ApplyEvent on commit, in
// append order, and via UndoEvent on abort/restart, in reverse order.
func (tx *Tx) AppendEvent(module ModuleID, head uint16, tail uintptr) {
	tx.core.AppendEvent(module, head, tail)
}

// ResolveConflict builds the error a module should return immediately when
// it detects that a lock it needs is held incompatibly by another
// transaction. lock may be nil when the specific lock is not identified.
func (tx *Tx) ResolveConflict(lock *rwlock.RWLock) error {
	return tx.core.ResolveConflict(lock)
}

// Irrevocable requests that the transaction continue in irrevocable mode,
// where it is guaranteed to run to completion without restart and without
// overlapping any other transaction's body. If the attempt is not already
// irrevocable, the returned error must be returned immediately by the
// caller so the engine can abort the speculative attempt and restart it
// irrevocably.
func (tx *Tx) Irrevocable() error {
	return tx.core.Irrevocable()
}

// IsIrrevocable reports whether the current attempt is already running
// irrevocably.
func (tx *Tx) IsIrrevocable() bool {
	return tx.core.IsIrrevocable()
}

// Mode returns the mode the current attempt is running under.
func (tx *Tx) Mode() Mode {
	return tx.core.Mode()
}

// perGoroutine bundles the state a goroutine needs across repeated Begin
// calls: its own STM transaction (reused across restarts via its
// free-list) and whether the STM module has already been registered with
// this goroutine's engine.Tx.
type perGoroutine struct {
	stm            *stmtx.Tx
	stmModuleID    ModuleID
	stmModuleReady bool
}

var (
	defaultEngine = engine.New()
	perGoStates   = threadstate.New(func() *perGoroutine {
		return &perGoroutine{stm: stmtx.New(framemap.Global())}
	})
)

// Begin runs body as a transaction on the calling goroutine, retrying it
// as many times as needed until it commits or fails with a non-recoverable
// error (spec.md §4.10). It corresponds to the bracketed
// picotm_begin/picotm_commit/picotm_end sequence of the application
// contract: body is the transactional block, and a non-nil return is
// funneled through the engine's abort/restart/recovery logic exactly as an
// error returned by any registered module's operation would be.
func Begin(body func(tx *Tx) error) error {
	pg, _ := perGoStates.Acquire(true)

	return defaultEngine.Run(func(core *engine.Tx) error {
		if !pg.stmModuleReady {
			pg.stmModuleID = core.RegisterModule(ModuleOps{
				Apply: func(data any) error { return pg.stm.Apply() },
				Undo:  func(data any) error { return pg.stm.Undo() },
			}, nil)
			pg.stmModuleReady = true
		}
		return body(&Tx{core: core, stm: pg.stm})
	})
}

// Release drops the calling goroutine's transaction state, running every
// registered module's Release callback first. Call it when a goroutine is
// done making transactions through this package; Go has no goroutine-exit
// hook to do this automatically.
func Release() {
	defaultEngine.Release()
	perGoStates.Release()
}
