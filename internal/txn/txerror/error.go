// Package txerror implements picotm's tagged error value (spec C8): a
// single type carrying enough information for the transaction engine to
// decide whether to restart, escalate to irrevocable mode, or surface a
// fatal error to the application's catch branch.
//
// PlatformErrno and Signal use golang.org/x/sys/unix's Errno and Signal
// types rather than bare ints, so a module that wraps a real syscall
// failure (as the out-of-scope POSIX modules described in spec.md §1 would)
// can carry the platform's own error/signal representation through
// unchanged instead of picotm inventing its own enum for values the OS
// already defines.
package txerror

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/kolkov/picotm/internal/txn/rwlock"
)

// Kind discriminates the status carried by an Error.
type Kind int

const (
	// KindNone means no error: the zero value of Error.
	KindNone Kind = iota
	// KindConflicting means the caller should restart; ConflictLock may
	// name the lock that caused the conflict.
	KindConflicting
	// KindRevocable means the caller's speculative operation cannot be
	// rolled back and the transaction must restart in irrevocable mode.
	KindRevocable
	// KindErrorCode is a general picotm-defined error, further refined by
	// Code.
	KindErrorCode
	// KindPlatformErrno carries a native errno through, in Errno.
	KindPlatformErrno
	// KindSignal means an asynchronous signal was recorded on the
	// transaction's error slot, in Signal/SigInfo.
	KindSignal
)

// Code refines KindErrorCode.
type Code int

const (
	// CodeGeneral is an unspecified error.
	CodeGeneral Code = iota
	// CodeOutOfMemory means an allocation failed (e.g. growing a page
	// table or frame-map directory).
	CodeOutOfMemory
	// CodeInvalidFenv means a floating-point environment operation was
	// invalid (carried for module contract completeness; no FPU module is
	// implemented by this core, per spec.md §1).
	CodeInvalidFenv
	// CodeOutOfBounds means an address or length fell outside a region a
	// module is willing to service.
	CodeOutOfBounds
)

// SigInfo carries the information delivered with a signal, independent of
// any single platform's siginfo_t layout.
type SigInfo struct {
	Code int32
	PID  int32
	UID  int32
}

// Error is picotm's tagged error value. The zero value represents "no
// error"; a pointer to it still satisfies the error interface as a non-nil
// value whose message is "picotm: no error", so callers should test Kind
// (or call IsSet) rather than compare against nil.
type Error struct {
	Kind         Kind
	Recoverable  bool
	Description  string
	ConflictLock *rwlock.RWLock
	Code         Code
	Errno        unix.Errno
	Signal       unix.Signal
	SigInfo      SigInfo
}

// IsSet reports whether e carries an actual error.
func (e *Error) IsSet() bool {
	return e != nil && e.Kind != KindNone
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil || e.Kind == KindNone {
		return "picotm: no error"
	}
	if e.Description != "" {
		return e.Description
	}
	switch e.Kind {
	case KindConflicting:
		return "picotm: conflict"
	case KindRevocable:
		return "picotm: revocable"
	case KindErrorCode:
		return fmt.Sprintf("picotm: error code %d", e.Code)
	case KindPlatformErrno:
		return fmt.Sprintf("picotm: errno %v", e.Errno)
	case KindSignal:
		return fmt.Sprintf("picotm: signal %v", e.Signal)
	default:
		return "picotm: unknown error"
	}
}

// Conflict builds a recoverable conflict error, optionally naming the lock
// that caused it.
func Conflict(lock *rwlock.RWLock) *Error {
	return &Error{Kind: KindConflicting, Recoverable: true, ConflictLock: lock}
}

// Revocable builds a recoverable revocable error.
func Revocable() *Error {
	return &Error{Kind: KindRevocable, Recoverable: true}
}

// CodeError builds an error-code error. Recoverable is false by default
// per spec.md §7: errors raised during execution default to fatal unless a
// module marks them otherwise by constructing the Error itself with
// Recoverable set.
func CodeError(code Code, description string) *Error {
	return &Error{Kind: KindErrorCode, Code: code, Description: description}
}

// Platform builds a platform-errno error from a real errno value.
func Platform(errno unix.Errno) *Error {
	return &Error{Kind: KindPlatformErrno, Errno: errno}
}

// FromSignal builds a non-recoverable signal error (spec.md §4.10:
// asynchronous signal delivery is treated as a transaction error and, per
// §7, errors raised outside the normal execution-phase recovery path are
// non-recoverable unless the installing module says otherwise).
func FromSignal(sig unix.Signal, info SigInfo) *Error {
	return &Error{Kind: KindSignal, Signal: sig, SigInfo: info}
}

// MarkNonRecoverable forces e to be treated as fatal, matching spec.md
// §4.10/§7's rule that errors raised during apply or while irrevocable
// bypass restart.
func MarkNonRecoverable(e *Error) *Error {
	if e == nil {
		return nil
	}
	e.Recoverable = false
	return e
}
