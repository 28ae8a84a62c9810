//go:build windows

package filestore

import (
	"os"

	"golang.org/x/sys/windows"
)

func lockFile(f *os.File, exclusive bool) error {
	var flags uint32
	if exclusive {
		flags = windows.LOCKFILE_EXCLUSIVE_LOCK
	}

	ol := new(windows.Overlapped)

	return windows.LockFileEx(windows.Handle(f.Fd()), flags, 0, 1, 0, ol)
}

func unlockFile(f *os.File) error {
	ol := new(windows.Overlapped)

	return windows.UnlockFileEx(windows.Handle(f.Fd()), 0, 1, 0, ol)
}

func syncDir(string) {}
