package lockfile

import (
	"path/filepath"
	"testing"
)

func TestAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".issues.lock")

	lock, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	lock.Release()

	// Reacquirable after release.
	again, err := Acquire(path)
	if err != nil {
		t.Fatalf("second Acquire: %v", err)
	}
	again.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".issues.lock")
	lock, err := Acquire(path)
	if err != nil {
		t.Fatal(err)
	}
	lock.Release()
	lock.Release()

	var nilLock *Lock
	nilLock.Release()
}
