// Package modreg implements picotm's per-transaction module registry and
// event log (spec C9): modules register a vtable of optional callbacks once
// per thread, and every transactional operation they perform is recorded as
// an opaque event that the engine replays on commit (apply) or abort/restart
// (undo), always in registration/append order forwards and the reverse
// order backwards.
package modreg

// ID identifies a registered module within one transaction's registry.
// Registration order equals apply order.
type ID int

// Ops is a module's vtable. Every field is optional; a nil field is simply
// not invoked. Data is the module's own opaque per-transaction state,
// passed back on every callback so the module needs no package-level
// globals to recover it.
type Ops struct {
	Begin         func(data any, mode Mode) error
	PrepareCommit func(data any, isIrrevocable bool) error
	Apply         func(data any) error
	Undo          func(data any) error
	ApplyEvent    func(data any, head uint16, tail uintptr) error
	UndoEvent     func(data any, head uint16, tail uintptr) error
	Finish        func(data any)
	Release       func(data any)
}

// Mode mirrors the engine's transaction mode, passed to Begin so a module
// can tell a fresh start from a retry or a recovery re-entry.
type Mode int

const (
	ModeStart Mode = iota
	ModeRetry
	ModeIrrevocable
	ModeRecovery
)

// module is one registry entry: a module's vtable plus its opaque data.
type module struct {
	ops  Ops
	data any
}

// Registry is the append-only vector of registered modules for one
// transaction. The zero value is ready to use.
type Registry struct {
	modules []module
}

// Register adds a module and returns its ID. Registration order equals
// apply order (spec.md §4.9).
func (r *Registry) Register(ops Ops, data any) ID {
	r.modules = append(r.modules, module{ops: ops, data: data})
	return ID(len(r.modules) - 1)
}

// Len reports the number of registered modules.
func (r *Registry) Len() int {
	return len(r.modules)
}

// Reset drops all registrations, used when a transaction's thread state is
// released rather than merely restarted (registrations do not survive
// release, per spec.md §6).
func (r *Registry) Reset() {
	r.modules = r.modules[:0]
}

// Begin invokes every module's Begin callback, in registration order.
func (r *Registry) Begin(mode Mode) error {
	for _, m := range r.modules {
		if m.ops.Begin == nil {
			continue
		}
		if err := m.ops.Begin(m.data, mode); err != nil {
			return err
		}
	}
	return nil
}

// PrepareCommit invokes every module's PrepareCommit callback, in
// registration order, stopping at the first error.
func (r *Registry) PrepareCommit(isIrrevocable bool) error {
	for _, m := range r.modules {
		if m.ops.PrepareCommit == nil {
			continue
		}
		if err := m.ops.PrepareCommit(m.data, isIrrevocable); err != nil {
			return err
		}
	}
	return nil
}

// Apply invokes every module's Apply callback, in registration order.
func (r *Registry) Apply() error {
	for _, m := range r.modules {
		if m.ops.Apply == nil {
			continue
		}
		if err := m.ops.Apply(m.data); err != nil {
			return err
		}
	}
	return nil
}

// Undo invokes every module's Undo callback, in reverse registration order.
func (r *Registry) Undo() error {
	for i := len(r.modules) - 1; i >= 0; i-- {
		m := r.modules[i]
		if m.ops.Undo == nil {
			continue
		}
		if err := m.ops.Undo(m.data); err != nil {
			return err
		}
	}
	return nil
}

// Finish invokes every module's Finish callback. Called on both the commit
// and abort paths, so it never reports an error.
func (r *Registry) Finish() {
	for _, m := range r.modules {
		if m.ops.Finish != nil {
			m.ops.Finish(m.data)
		}
	}
}

// Release invokes every module's Release callback, used at thread teardown
// to let each module drop its per-thread state, then clears the registry.
func (r *Registry) Release() {
	for _, m := range r.modules {
		if m.ops.Release != nil {
			m.ops.Release(m.data)
		}
	}
	r.Reset()
}

func (r *Registry) applyEvent(ev Event) error {
	m := r.modules[ev.Module]
	if m.ops.ApplyEvent == nil {
		return nil
	}
	return m.ops.ApplyEvent(m.data, ev.Head, ev.Tail)
}

func (r *Registry) undoEvent(ev Event) error {
	m := r.modules[ev.Module]
	if m.ops.UndoEvent == nil {
		return nil
	}
	return m.ops.UndoEvent(m.data, ev.Head, ev.Tail)
}

// Event is one opaque, append-only log entry: which module recorded it and
// two module-defined words (Head, Tail) whose meaning is entirely up to the
// module's ApplyEvent/UndoEvent callbacks.
type Event struct {
	Module ID
	Head   uint16
	Tail   uintptr
}

// Log is the append-only per-transaction event log (spec.md §4.9).
type Log struct {
	events []Event
}

// Append records one event. All appends are serialised within the
// transaction because a transaction is single-threaded by definition.
func (l *Log) Append(module ID, head uint16, tail uintptr) {
	l.events = append(l.events, Event{Module: module, Head: head, Tail: tail})
}

// Len reports the number of logged events.
func (l *Log) Len() int {
	return len(l.events)
}

// Reset clears the log, used after commit or abort.
func (l *Log) Reset() {
	l.events = l.events[:0]
}

// Apply walks the log in append order, dispatching ApplyEvent through reg
// for each entry. It stops and returns the first error.
func (l *Log) Apply(reg *Registry) error {
	for _, ev := range l.events {
		if err := reg.applyEvent(ev); err != nil {
			return err
		}
	}
	return nil
}

// Undo walks the log in reverse append order, dispatching UndoEvent through
// reg for each entry. A module's undo is expected to be best-effort, so
// Undo keeps undoing the remaining events after an error and reports only
// the first failure to the caller, matching the engine's convention of
// surfacing a single non-recoverable error.
func (l *Log) Undo(reg *Registry) error {
	var first error
	for i := len(l.events) - 1; i >= 0; i-- {
		if err := reg.undoEvent(l.events[i]); err != nil && first == nil {
			first = err
		}
	}
	return first
}
