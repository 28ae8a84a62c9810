//go:build !unix && !windows

package filestore

import "os"

// Without advisory locks only the in-process mutex applies.
func lockFile(*os.File, bool) error { return nil }

func unlockFile(*os.File) error { return nil }

func syncDir(string) {}
