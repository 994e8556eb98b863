// Package lockfile provides the advisory file lock guarding the JSONL
// logs against concurrent process invocations.
//
// The lock is a scoped-acquisition resource: Acquire returns a held Lock
// whose Release must run on every exit path (callers defer it
// immediately). Acquisition blocks indefinitely; critical sections are
// short-lived appends or rewrites, so no timeout semantics are defined.
package lockfile

import (
	"fmt"
	"os"
)

// Lock is a held advisory exclusive lock on a lock file.
type Lock struct {
	f *os.File
}

// Acquire opens (creating if needed) the lock file at path and blocks
// until an exclusive lock is held.
func Acquire(path string) (*Lock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := flockExclusive(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("acquiring lock on %s: %w", path, err)
	}
	return &Lock{f: f}, nil
}

// Release drops the lock and closes the underlying file. Safe to call on
// a nil receiver or more than once.
func (l *Lock) Release() {
	if l == nil || l.f == nil {
		return
	}
	_ = flockUnlock(l.f)
	_ = l.f.Close()
	l.f = nil
}
