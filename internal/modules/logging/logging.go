// Package logging is a small illustrative module exercising the
// Apply/Undo side of the module contract (spec C9/C15): a buffer of log
// lines accumulated during a transaction's body and flushed to an
// io.Writer only if the transaction commits, discarded if it aborts or
// restarts.
//
// Unlike internal/modules/counter, a Buffer is meant to be created fresh
// by the caller inside the body passed to picotm.Begin, so a restarted
// attempt starts with an empty buffer automatically (it's a local
// variable the body closure rebuilds on every call) rather than needing
// its own per-goroutine release bookkeeping.
package logging

import (
	"fmt"
	"io"

	"github.com/kolkov/picotm/picotm"
)

// Buffer accumulates log lines for one transaction attempt.
type Buffer struct {
	lines []string
}

// Printf appends a formatted line to the buffer. It is not written
// anywhere until the transaction commits.
func (b *Buffer) Printf(format string, args ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

// Attach registers b as a module on tx: its buffered lines are written to
// out, one per line, only when tx commits.
func (b *Buffer) Attach(tx *picotm.Tx, out io.Writer) picotm.ModuleID {
	return tx.RegisterModule(picotm.ModuleOps{
		Apply: func(data any) error {
			for _, line := range b.lines {
				if _, err := fmt.Fprintln(out, line); err != nil {
					return err
				}
			}
			// The registration outlives this transaction, so a later
			// commit on the same goroutine must not write these lines again.
			b.lines = nil
			return nil
		},
		Undo: func(data any) error {
			b.lines = nil
			return nil
		},
	}, nil)
}
