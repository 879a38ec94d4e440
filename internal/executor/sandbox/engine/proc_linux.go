//go:build linux

package engine

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// Pdeathsig fires when the OS thread that forked the child exits, not
// when the service process does. Go may retire that thread while the child
// still runs, so this only narrows the crash window. The group kill after
// exit and the timeout are what bound a child's lifetime.
func buildSysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
}

// awaitExit blocks until pid exits without reaping it, so the process
// group can still be signalled safely before Wait releases the pid.
func awaitExit(pid int) bool {
	var info unix.Siginfo
	for {
		err := unix.Waitid(unix.P_PID, pid, &info, unix.WEXITED|unix.WNOWAIT, nil)
		if err == nil {
			return true
		}
		if err != unix.EINTR {
			return false
		}
	}
}
