package service

import (
	"context"
	"time"

	"execsvc/internal/executor/sandbox/engine"
	"execsvc/internal/executor/sandbox/observer"
	"execsvc/internal/executor/sandbox/result"
	"execsvc/internal/executor/sandbox/spec"
	"execsvc/internal/executor/sandbox/workspace"
	appErr "execsvc/pkg/errors"
	"execsvc/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultPoolSize       = 8
	defaultAcquireTimeout = 2 * time.Second
)

// Config controls the execute service.
type Config struct {
	PoolSize       int
	AcquireTimeout time.Duration
}

// ExecuteService materializes and runs one request at a time per slot.
type ExecuteService struct {
	limits         spec.Limits
	materializer   *workspace.Materializer
	engine         engine.Engine
	metrics        observer.MetricsRecorder
	sem            chan struct{}
	acquireTimeout time.Duration
}

func NewExecuteService(limits spec.Limits, materializer *workspace.Materializer, eng engine.Engine, metrics observer.MetricsRecorder, cfg Config) *ExecuteService {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if metrics == nil {
		metrics = observer.Nop{}
	}
	return &ExecuteService{
		limits:         limits,
		materializer:   materializer,
		engine:         eng,
		metrics:        metrics,
		sem:            make(chan struct{}, cfg.PoolSize),
		acquireTimeout: cfg.AcquireTimeout,
	}
}

// Limits returns the limits the service was built with.
func (s *ExecuteService) Limits() spec.Limits {
	return s.limits
}

// Execute runs req and returns its record. Only slot exhaustion and
// cancellation before the run are returned as errors.
func (s *ExecuteService) Execute(ctx context.Context, req spec.ExecutionRequest) (result.Record, error) {
	if err := s.acquireSlot(ctx); err != nil {
		return result.Record{}, err
	}
	defer s.releaseSlot()

	start := time.Now()
	s.metrics.ObserveStart(ctx, len(req.Executable))

	execution := s.run(ctx, req)

	duration := time.Since(start)
	s.metrics.ObserveRun(ctx, execution.Outcome, duration)
	logger.Info(ctx, "execution finished",
		zap.String("outcome", string(execution.Outcome)),
		zap.Int("returncode", execution.Record.Returncode),
		zap.Duration("duration", duration),
		zap.Int("executable_bytes", len(req.Executable)),
		zap.Int("calldata_bytes", len(req.Calldata)),
		zap.Int64("timeout_ms", req.TimeoutMillis),
		zap.Int("pid", execution.Pid),
	)
	return execution.Record, nil
}

func (s *ExecuteService) run(ctx context.Context, req spec.ExecutionRequest) result.Execution {
	ws, err := s.materializer.Materialize(req.Executable, s.limits.MaxExecutable)
	if err != nil {
		logger.Warn(ctx, "materialize executable failed", zap.Error(err))
		return result.Execution{
			Record:  result.Failed(result.OutcomeSpawnFailed),
			Outcome: result.OutcomeSpawnFailed,
		}
	}
	defer func() {
		if err := ws.Release(); err != nil {
			logger.Warn(ctx, "release workspace failed", zap.String("dir", ws.Dir), zap.Error(err))
		}
	}()

	return s.engine.Run(ctx, spec.RunSpec{
		Path:          ws.Path,
		WorkDir:       ws.Dir,
		Calldata:      req.Calldata,
		TimeoutMillis: req.TimeoutMillis,
		StdoutCap:     s.limits.MaxStdout,
		StderrCap:     s.limits.MaxStderr,
	})
}

func (s *ExecuteService) acquireSlot(ctx context.Context) error {
	timer := time.NewTimer(s.acquireTimeout)
	defer timer.Stop()
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return appErr.Wrap(ctx.Err(), appErr.ServiceUnavailable).WithMessage("request canceled while waiting for an executor slot")
	case <-timer.C:
		return appErr.New(appErr.ExecutorBusy).
			WithDetail("pool_size", cap(s.sem)).
			WithDetail("waited", s.acquireTimeout.String())
	}
}

func (s *ExecuteService) releaseSlot() {
	select {
	case <-s.sem:
	default:
	}
}
