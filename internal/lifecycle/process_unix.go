//go:build !windows

package lifecycle

import "golang.org/x/sys/unix"

// ProcessAlive reports whether pid names a live process
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}

	err := unix.Kill(pid, 0)
	return err == nil || err == unix.EPERM
}
