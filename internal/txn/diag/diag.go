// Package diag formats human-readable summaries of a transaction's
// outcome, in the vein of the teacher's detector.RaceReport: a small
// struct capturing what happened, with a Format method writing to an
// io.Writer and a String method for convenience.
package diag

import (
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/picotm/internal/txn/modreg"
)

// Outcome classifies how a transaction ended.
type Outcome int

const (
	// ocCommitted means the final attempt's commit sequence succeeded.
	ocCommitted Outcome = iota
	// ocRecovered means a non-recoverable error surfaced to the caller.
	ocRecovered
)

func (o Outcome) String() string {
	switch o {
	case ocCommitted:
		return "committed"
	case ocRecovered:
		return "recovered"
	default:
		return "unknown"
	}
}

// Report summarises one Begin call: how many attempts it took, what mode
// the final attempt ran under, and the error (if any) it ended with.
type Report struct {
	Outcome    Outcome
	Attempts   int
	FinalMode  modreg.Mode
	FinalError error
}

// Committed builds a Report for a transaction that ran attempts times and
// committed.
func Committed(attempts int, mode modreg.Mode) *Report {
	return &Report{Outcome: ocCommitted, Attempts: attempts, FinalMode: mode}
}

// Recovered builds a Report for a transaction whose final attempt
// surfaced a non-recoverable error to the application's catch branch.
func Recovered(attempts int, mode modreg.Mode, err error) *Report {
	return &Report{Outcome: ocRecovered, Attempts: attempts, FinalMode: mode, FinalError: err}
}

func modeString(m modreg.Mode) string {
	switch m {
	case modreg.ModeStart:
		return "start"
	case modreg.ModeRetry:
		return "retry"
	case modreg.ModeIrrevocable:
		return "irrevocable"
	case modreg.ModeRecovery:
		return "recovery"
	default:
		return "invalid"
	}
}

// Format writes a one-paragraph human-readable summary to w.
func (r *Report) Format(w io.Writer) {
	fmt.Fprintf(w, "transaction %s after %d attempt", r.Outcome, r.Attempts)
	if r.Attempts != 1 {
		fmt.Fprint(w, "s")
	}
	fmt.Fprintf(w, ", final mode %s", modeString(r.FinalMode))
	if r.FinalError != nil {
		fmt.Fprintf(w, ": %v", r.FinalError)
	}
	fmt.Fprintln(w)
}

// String returns Format's output as a string.
func (r *Report) String() string {
	var b strings.Builder
	r.Format(&b)
	return b.String()
}
