//go:build !darwin && !linux

package agentlock

import "os"

// No advisory locking here; the UDP bind on the agent port still fails for a
// second instance.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
