//go:build !unix

package logging

import "os"

// lockFile is a no-op where flock is unavailable.
func lockFile(*os.File) error { return nil }

// unlockFile is a no-op where flock is unavailable.
func unlockFile(*os.File) {}
