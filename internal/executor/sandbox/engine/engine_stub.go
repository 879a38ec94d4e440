//go:build !unix

package engine

import (
	"context"

	"execsvc/internal/executor/sandbox/result"
	"execsvc/internal/executor/sandbox/spec"
	"execsvc/pkg/utils/logger"
)

type stubEngine struct{}

func NewEngine(cfg Config) (Engine, error) {
	return &stubEngine{}, nil
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) result.Execution {
	logger.Warn(ctx, "sandbox engine is only supported on unix")
	rec := result.Failed(result.OutcomeSpawnFailed)
	return result.Execution{Record: rec, Outcome: result.OutcomeSpawnFailed}
}
