//go:build linux

package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"execsvc/internal/executor/sandbox/result"

	"golang.org/x/sys/unix"
)

// processGone reports whether pid has exited. A zombie left to an init
// that does not reap counts as gone.
func processGone(pid int) bool {
	data, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return os.IsNotExist(err)
	}
	stat := string(data)
	end := strings.LastIndexByte(stat, ')')
	if end < 0 || end+2 >= len(stat) {
		return false
	}
	state := stat[end+2]
	return state == 'Z' || state == 'X'
}

func readPid(t *testing.T, path string) int {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		t.Fatalf("bad pid %q: %v", data, err)
	}
	return pid
}

func TestRunKillsDescendants(t *testing.T) {
	eng := newTestEngine(t, Config{})

	cases := []struct {
		name      string
		tail      string
		timeoutMs int64
		want      result.Outcome
	}{
		{"natural exit", "echo done\n", 5000, result.OutcomeCompleted},
		{"timeout", "sleep 30\n", 200, result.OutcomeTimedOut},
		{"stdout overflow", "while :; do echo xxxxxxxx; done\n", 5000, result.OutcomeStdoutOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			pidFile := filepath.Join(t.TempDir(), "bg.pid")
			script := fmt.Sprintf("#!/bin/sh\nsleep 30 &\necho $! > %s\n%s", pidFile, tc.tail)

			got := runScript(t, eng, script, "", tc.timeoutMs, 16, 1024)
			if got.Outcome != tc.want {
				t.Fatalf("outcome = %s, want %s (record %+v)", got.Outcome, tc.want, got.Record)
			}

			pid := readPid(t, pidFile)
			t.Cleanup(func() {
				if !processGone(pid) {
					_ = unix.Kill(pid, unix.SIGKILL)
				}
			})

			deadline := time.Now().Add(2 * time.Second)
			for !processGone(pid) {
				if time.Now().After(deadline) {
					t.Fatalf("background child %d still running after the run returned", pid)
				}
				time.Sleep(10 * time.Millisecond)
			}
		})
	}
}
