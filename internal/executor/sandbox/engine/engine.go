package engine

import (
	"context"

	"execsvc/internal/executor/sandbox/result"
	"execsvc/internal/executor/sandbox/spec"
)

// Engine runs one materialized executable as a single child process.
// Run never returns an error: every failure is folded into the record.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) result.Execution
}
