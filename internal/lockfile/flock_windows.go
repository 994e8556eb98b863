//go:build windows

package lockfile

import (
	"os"

	"golang.org/x/sys/windows"
)

// flockExclusive acquires an exclusive blocking lock on the file.
func flockExclusive(f *os.File) error {
	ol := &windows.Overlapped{}
	return windows.LockFileEx(
		windows.Handle(f.Fd()),
		windows.LOCKFILE_EXCLUSIVE_LOCK,
		0,
		0xFFFFFFFF,
		0xFFFFFFFF,
		ol,
	)
}

// flockUnlock releases the lock on the file.
func flockUnlock(f *os.File) error {
	ol := &windows.Overlapped{}
	return windows.UnlockFileEx(
		windows.Handle(f.Fd()),
		0,
		0xFFFFFFFF,
		0xFFFFFFFF,
		ol,
	)
}
