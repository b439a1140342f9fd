// Package goid extracts a stable per-goroutine identity for use as a key
// into goroutine-local state. It is adapted from the portable path of the
// teacher's internal/race/api goid package (goid_generic.go's parseGID /
// getGoroutineIDSlow): parse the numeric ID out of the first line of
// runtime.Stack's output, rather than reach into the runtime.g struct at a
// hardcoded field offset the way the teacher's assembly fast paths do.
//
// That offset-hacking approach is deliberately not carried over: it pins
// correctness to the exact layout of an unexported runtime struct across Go
// versions and architectures (the teacher's own goid_amd64.go even ships
// disabled with a comment to that effect). picotm only needs a goroutine
// identity at transaction begin/commit boundaries, nowhere near the
// per-memory-access hot path the teacher was optimizing for, so the slow,
// portable, unsafe-free path is the right tradeoff here.
package goid

import "runtime"

// Current returns the calling goroutine's numeric ID. The value is stable
// for the lifetime of the goroutine and unique among live goroutines, but
// Go makes no guarantee it won't be reused after the goroutine exits.
func Current() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	return parseGID(buf[:n])
}

// parseGID extracts the numeric ID from a line of the form
// "goroutine 123 [running]:...". It returns 0 if the expected prefix is
// not present.
func parseGID(buf []byte) int64 {
	const prefix = "goroutine "
	if len(buf) < len(prefix) || string(buf[:len(prefix)]) != prefix {
		return 0
	}
	var id int64
	for _, c := range buf[len(prefix):] {
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + int64(c-'0')
	}
	return id
}
