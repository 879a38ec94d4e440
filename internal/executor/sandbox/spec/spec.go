// Package spec defines the execution request and the process-wide limits.
package spec

import (
	"fmt"
	"strings"
)

// Limits holds the byte and time ceilings enforced for every request.
// It is built once at startup and shared read-only.
type Limits struct {
	MaxExecutable int64
	MaxCalldata   int64
	MaxTimeoutMs  int64
	MaxStdout     int64
	MaxStderr     int64
}

// Validate checks that every limit is present and positive.
func (l Limits) Validate() error {
	checks := []struct {
		name  string
		value int64
	}{
		{"MAX_EXECUTABLE", l.MaxExecutable},
		{"MAX_CALLDATA", l.MaxCalldata},
		{"MAX_TIMEOUT", l.MaxTimeoutMs},
		{"MAX_STDOUT", l.MaxStdout},
		{"MAX_STDERR", l.MaxStderr},
	}
	for _, c := range checks {
		if c.value <= 0 {
			return fmt.Errorf("%s must be a positive integer, got %d", c.name, c.value)
		}
	}
	return nil
}

// CalldataMode selects how calldata reaches the child process.
type CalldataMode string

const (
	CalldataStdin CalldataMode = "stdin"
	CalldataArgs  CalldataMode = "args"
)

// ParseCalldataMode parses a config value, empty means stdin.
func ParseCalldataMode(s string) (CalldataMode, error) {
	switch CalldataMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", CalldataStdin:
		return CalldataStdin, nil
	case CalldataArgs:
		return CalldataArgs, nil
	default:
		return "", fmt.Errorf("unknown calldata mode %q", s)
	}
}

// OverflowPolicy selects what happens when a stream exceeds its cap.
type OverflowPolicy string

const (
	// OverflowFail kills the process and reports 112/113 with empty streams.
	OverflowFail OverflowPolicy = "fail"
	// OverflowTruncate keeps the first cap bytes and lets the process finish.
	OverflowTruncate OverflowPolicy = "truncate"
)

// ParseOverflowPolicy parses a config value, empty means fail.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch OverflowPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OverflowFail:
		return OverflowFail, nil
	case OverflowTruncate:
		return OverflowTruncate, nil
	default:
		return "", fmt.Errorf("unknown overflow policy %q", s)
	}
}

// ExecutionRequest is one validated request.
type ExecutionRequest struct {
	Executable    []byte
	Calldata      []byte
	TimeoutMillis int64
}

// RunSpec is what the engine needs to run one materialized executable.
type RunSpec struct {
	Path          string
	WorkDir       string
	Calldata      []byte
	TimeoutMillis int64
	StdoutCap     int64
	StderrCap     int64
}
