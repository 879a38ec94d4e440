//go:build unix && !linux

package engine

import "syscall"

func buildSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// awaitExit cannot wait without reaping here, so descendants left behind
// after a natural exit are only cut off by the drain grace.
func awaitExit(pid int) bool {
	return false
}
