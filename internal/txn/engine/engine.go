// Package engine implements picotm's transaction core (spec C10): the
// per-goroutine transaction record, the begin/commit/abort/restart control
// flow, and irrevocability serialisation.
//
// The C original captures a CPU execution context at the begin site and
// restarts a transaction with setjmp/longjmp back into application code.
// Go has neither; instead the application body is a plain closure
// (func(*Tx) error) and Engine.Run supplies the loop that setjmp/longjmp
// would otherwise drive: it calls the closure repeatedly, once per attempt,
// until the attempt commits or the failure is non-recoverable. A module
// that wants to force a restart (to record a conflict, or to request
// irrevocability) returns the txerror.Error describing why, exactly as the
// C API's module callbacks report it through the error slot; Engine.Run
// classifies that error and decides whether to loop again.
package engine

import (
	"sync"

	"github.com/kolkov/picotm/internal/txn/modreg"
	"github.com/kolkov/picotm/internal/txn/rwlock"
	"github.com/kolkov/picotm/internal/txn/threadstate"
	"github.com/kolkov/picotm/internal/txn/txerror"
)

// Tx is one goroutine's transaction record. It is acquired lazily from an
// Engine and reused across restarts and across successive transactions run
// by the same goroutine.
type Tx struct {
	engine *Engine
	mode   modreg.Mode
	reg    modreg.Registry
	log    modreg.Log
}

// Mode returns the mode the current attempt is running under.
func (tx *Tx) Mode() modreg.Mode {
	return tx.mode
}

// IsIrrevocable reports whether the current attempt is running in
// irrevocable mode, which is the case only when a prior attempt requested
// it: calling Irrevocable does not change the mode of the attempt that
// calls it (see Irrevocable).
func (tx *Tx) IsIrrevocable() bool {
	return tx.mode == modreg.ModeIrrevocable
}

// RegisterModule adds a module to this transaction's registry and returns
// its ID. Registration is per-goroutine and does not survive Engine.Release
// (spec.md §6).
func (tx *Tx) RegisterModule(ops modreg.Ops, data any) modreg.ID {
	return tx.reg.Register(ops, data)
}

// AppendEvent records one opaque event in this transaction's log. Events
// are replayed in append order on commit and in reverse append order on
// abort/restart.
func (tx *Tx) AppendEvent(module modreg.ID, head uint16, tail uintptr) {
	tx.log.Append(module, head, tail)
}

// ResolveConflict builds the error a module's operation should return when
// it detects a lock conflict; the caller must return the result immediately
// so Engine.Run can abort and restart the attempt. lock may be nil if the
// specific lock is not known.
func (tx *Tx) ResolveConflict(lock *rwlock.RWLock) error {
	return txerror.Conflict(lock)
}

// Irrevocable requests that the transaction continue in irrevocable mode.
// If the current attempt is already irrevocable, it returns nil so the
// caller proceeds normally. Otherwise it returns a
// revocable error that the caller must return immediately: Engine.Run
// aborts the current (speculative) attempt and restarts it in irrevocable
// mode, at which point no other transaction may be mid-body concurrently.
func (tx *Tx) Irrevocable() error {
	if tx.mode == modreg.ModeIrrevocable {
		return nil
	}
	return txerror.Revocable()
}

// Engine owns the per-goroutine transaction records and the single mutex
// that serialises irrevocable execution against every other transaction.
// Spec.md §4.10 leaves the exact mechanism open ("an RW lock, a pair of
// counters, or an equivalent protocol"); a sync.RWMutex is the direct Go
// reading of that: normal attempts take it in shared (RLock) mode, an
// irrevocable attempt takes it exclusively (Lock), so at most one
// irrevocable transaction runs and never concurrently with a speculative
// one.
type Engine struct {
	states  *threadstate.Of[Tx]
	irrevMu sync.RWMutex
}

// New returns a ready-to-use Engine.
func New() *Engine {
	e := &Engine{}
	e.states = threadstate.New(func() *Tx { return &Tx{} })
	return e
}

// Run executes body as a transaction on the calling goroutine: it acquires
// (or reuses) this goroutine's Tx record, runs every registered module's
// Begin callback, invokes body, and on success runs the two-phase commit
// sequence from spec.md §4.10. If body or commit reports a recoverable
// txerror.Error, Run undoes the attempt and loops with an updated mode;
// otherwise it surfaces the final error to the caller, mirroring the
// application's catch branch in the C API.
func (e *Engine) Run(body func(tx *Tx) error) error {
	tx, _ := e.states.Acquire(true)
	tx.engine = e

	mode := modreg.ModeStart
	for {
		tx.mode = mode

		if err := tx.reg.Begin(mode); err != nil {
			return err
		}

		e.acquireSlot(mode)
		bodyErr := body(tx)
		if bodyErr == nil {
			bodyErr = tx.commit(mode)
		}
		e.releaseSlot(mode)

		if bodyErr == nil {
			tx.finish()
			return nil
		}

		nextMode, recoverable := tx.abortAndClassify(bodyErr)
		tx.finish()
		if !recoverable {
			return bodyErr
		}
		mode = nextMode
	}
}

// Release drops the calling goroutine's transaction record, running every
// registered module's Release callback first. It must be called when a
// goroutine is done making transactions through this engine, since Go has
// no goroutine-exit hook to do it automatically.
func (e *Engine) Release() {
	if tx, ok := e.states.Acquire(false); ok {
		tx.reg.Release()
	}
	e.states.Release()
}

func (e *Engine) acquireSlot(mode modreg.Mode) {
	if mode == modreg.ModeIrrevocable {
		e.irrevMu.Lock()
		return
	}
	e.irrevMu.RLock()
}

func (e *Engine) releaseSlot(mode modreg.Mode) {
	if mode == modreg.ModeIrrevocable {
		e.irrevMu.Unlock()
		return
	}
	e.irrevMu.RUnlock()
}

// commit runs the four-step sequence from spec.md §4.10: prepare_commit on
// every module, apply_event over the log, apply on every module, then
// finish (finish itself happens in the caller, after undo/commit has been
// decided, since it is shared between the commit and abort paths). Any
// error from steps 2-4 is forced non-recoverable per spec.md §4.8.
func (tx *Tx) commit(mode modreg.Mode) error {
	isIrrevocable := mode == modreg.ModeIrrevocable

	if err := tx.reg.PrepareCommit(isIrrevocable); err != nil {
		return err
	}
	if err := tx.log.Apply(&tx.reg); err != nil {
		return txerror.MarkNonRecoverable(asTxError(err))
	}
	if err := tx.reg.Apply(); err != nil {
		return txerror.MarkNonRecoverable(asTxError(err))
	}
	return nil
}

// abortAndClassify runs the undo sequence (reverse event log, reverse
// module undo) and decides the next step: restart with an updated mode, or
// surface the error as final. The caller still owes the transaction a
// finish() afterward either way (spec.md §4.10 abort step 3: release
// locks, clear log, call finish) so a restarted attempt starts from an
// empty log rather than replaying the aborted attempt's events too.
func (tx *Tx) abortAndClassify(bodyErr error) (modreg.Mode, bool) {
	tx.log.Undo(&tx.reg)
	tx.reg.Undo()

	terr := asTxError(bodyErr)
	// An irrevocable attempt never restarts: any error it raises is final.
	if tx.mode == modreg.ModeIrrevocable {
		txerror.MarkNonRecoverable(terr)
	}
	if !terr.Recoverable {
		return modreg.ModeStart, false
	}
	if terr.Kind == txerror.KindRevocable {
		return modreg.ModeIrrevocable, true
	}
	return modreg.ModeRetry, true
}

// finish clears the event log and runs every module's Finish callback.
// Registrations themselves survive (they are dropped only by Release), so
// a restarted attempt keeps the same modules.
func (tx *Tx) finish() {
	tx.reg.Finish()
	tx.log.Reset()
}

// asTxError coerces an arbitrary error into a *txerror.Error so the engine
// always has Kind/Recoverable to classify on. An error a module did not
// build through the txerror constructors is treated as a general,
// non-recoverable failure: the engine cannot know whether it is safe to
// retry code that did not opt into the recoverable protocol.
func asTxError(err error) *txerror.Error {
	if err == nil {
		return &txerror.Error{}
	}
	if te, ok := err.(*txerror.Error); ok {
		return te
	}
	return txerror.CodeError(txerror.CodeGeneral, err.Error())
}
