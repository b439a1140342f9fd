// Package picotm implements a system-level transaction manager: a runtime
// that lets application code bracket a block of imperative operations
// between a begin and a commit marker, guaranteeing atomic, isolated
// execution against other concurrently running transactions and against
// certain runtime errors. On conflict the transaction is rolled back and
// re-executed; on success, all of its side effects are applied together.
//
// # Quick Start
//
//	var counter int64
//
//	err := picotm.Begin(func(tx *picotm.Tx) error {
//		buf, err := tx.Load(unsafe.Pointer(&counter), 8)
//		if err != nil {
//			return err // conflict: Begin will retry the whole body
//		}
//		n := int64(binary.LittleEndian.Uint64(buf))
//		binary.LittleEndian.PutUint64(buf, uint64(n+1))
//		return tx.Store(unsafe.Pointer(&counter), buf)
//	})
//
// Begin retries body as many times as a recoverable conflict requires;
// body must be idempotent and free of externally visible side effects
// until it returns nil, exactly as with any optimistic-concurrency loop.
//
// # Modules
//
// Subsystems with their own transactional semantics (a file descriptor
// table, an allocator, a logger) register a vtable of optional callbacks
// with RegisterModule and log their own opaque events with AppendEvent;
// the core replays those events (and the module's own Apply/Undo) in
// append order on commit and in reverse on abort, alongside the engine's
// handling of the transaction's own STM pages. See internal/modules for
// two small illustrative modules built on this contract.
//
// # Irrevocability
//
// A module whose operation cannot be undone (because it already reached
// an external system that won't roll back) calls Tx.Irrevocable. The
// engine guarantees at most one irrevocable transaction runs at a time,
// and that no other transaction's body executes concurrently with it.
//
// # How It Works
//
// Internally, picotm is a small stack of components: a reader/writer lock
// with immediate-failure semantics (internal/txn/rwlock), a lock-free
// radix tree mapping addresses to per-block frames (internal/txn/treemap,
// internal/stm/framemap), per-transaction page buffers implementing
// write-back and write-through semantics (internal/stm/page,
// internal/stm/stmtx), and the event log / module registry / replay loop
// that ties them together (internal/txn/modreg, internal/txn/engine).
// Conflicts are never resolved by waiting: every lock acquisition that
// cannot succeed immediately fails, and the failing transaction restarts.
package picotm
