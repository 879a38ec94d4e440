//go:build unix

package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"

	"execsvc/internal/executor/sandbox/result"
	"execsvc/internal/executor/sandbox/spec"
	"execsvc/pkg/utils/logger"

	"github.com/google/shlex"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
)

type unixEngine struct {
	cfg Config
}

// NewEngine creates a process engine for unix hosts.
func NewEngine(cfg Config) (Engine, error) {
	cfg = cfg.withDefaults()
	if _, err := spec.ParseCalldataMode(string(cfg.CalldataMode)); err != nil {
		return nil, err
	}
	if _, err := spec.ParseOverflowPolicy(string(cfg.OverflowPolicy)); err != nil {
		return nil, err
	}
	return &unixEngine{cfg: cfg}, nil
}

// pipes holds both ends of the three standard streams.
type pipes struct {
	stdinR, stdinW   *os.File
	stdoutR, stdoutW *os.File
	stderrR, stderrW *os.File
}

func openPipes() (*pipes, error) {
	p := &pipes{}
	var err error
	if p.stdinR, p.stdinW, err = os.Pipe(); err != nil {
		return nil, err
	}
	if p.stdoutR, p.stdoutW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	if p.stderrR, p.stderrW, err = os.Pipe(); err != nil {
		p.closeAll()
		return nil, err
	}
	return p, nil
}

// closeChildEnds drops the parent's copies of the ends the child inherited.
func (p *pipes) closeChildEnds() {
	closeFiles(p.stdinR, p.stdoutW, p.stderrW)
}

func (p *pipes) closeParentEnds() {
	closeFiles(p.stdinW, p.stdoutR, p.stderrR)
}

func (p *pipes) closeAll() {
	p.closeChildEnds()
	p.closeParentEnds()
}

func closeFiles(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

func (e *unixEngine) Run(ctx context.Context, runSpec spec.RunSpec) result.Execution {
	start := time.Now()
	finish := func(rec result.Record, pid int) result.Execution {
		return result.Execution{
			Record:     rec,
			Outcome:    result.OutcomeOf(rec),
			WallTimeMs: time.Since(start).Milliseconds(),
			Pid:        pid,
		}
	}

	if err := validateRunSpec(runSpec); err != nil {
		logger.Warn(ctx, "invalid run spec", zap.Error(err))
		return finish(result.Failed(result.OutcomeSpawnFailed), 0)
	}
	args, err := e.buildArgs(runSpec)
	if err != nil {
		logger.Warn(ctx, "split calldata into arguments failed", zap.Error(err))
		return finish(result.Failed(result.OutcomeSpawnFailed), 0)
	}

	p, err := openPipes()
	if err != nil {
		logger.Warn(ctx, "open pipes failed", zap.Error(err))
		return finish(result.Failed(result.OutcomeSpawnFailed), 0)
	}

	cmd, err := e.spawn(ctx, runSpec, args, p)
	p.closeChildEnds()
	if err != nil {
		p.closeParentEnds()
		logger.Warn(ctx, "spawn executable failed", zap.String("path", runSpec.Path), zap.Error(err))
		return finish(result.Failed(result.OutcomeSpawnFailed), 0)
	}
	pid := cmd.Process.Pid

	rec := e.supervise(ctx, cmd, runSpec, p)
	return finish(rec, pid)
}

func (e *unixEngine) buildArgs(runSpec spec.RunSpec) ([]string, error) {
	if e.cfg.CalldataMode != spec.CalldataArgs {
		return nil, nil
	}
	return shlex.Split(string(runSpec.Calldata))
}

// spawn starts the child, retrying only while the kernel reports the
// freshly written file as busy.
func (e *unixEngine) spawn(ctx context.Context, runSpec spec.RunSpec, args []string, p *pipes) (*exec.Cmd, error) {
	var lastErr error
	for attempt := 0; attempt < e.cfg.SpawnAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * e.cfg.SpawnBackoff):
			}
		}
		cmd := exec.Command(runSpec.Path, args...)
		cmd.Dir = runSpec.WorkDir
		cmd.Env = e.cfg.Env
		cmd.Stdin = p.stdinR
		cmd.Stdout = p.stdoutW
		cmd.Stderr = p.stderrW
		cmd.SysProcAttr = buildSysProcAttr()

		lastErr = cmd.Start()
		if lastErr == nil {
			return cmd, nil
		}
		if !errors.Is(lastErr, unix.ETXTBSY) {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("executable stayed busy after %d attempts: %w", e.cfg.SpawnAttempts, lastErr)
}

// supervise races process exit, both stream caps and the deadline, then
// joins every goroutine before assembling the record.
func (e *unixEngine) supervise(ctx context.Context, cmd *exec.Cmd, runSpec spec.RunSpec, p *pipes) result.Record {
	pid := cmd.Process.Pid
	deadline := time.Now().Add(time.Duration(runSpec.TimeoutMillis) * time.Millisecond)
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	stdout := newDrainer(runSpec.StdoutCap)
	stderr := newDrainer(runSpec.StderrCap)

	var g errgroup.Group
	g.Go(func() error {
		defer p.stdinW.Close()
		if e.cfg.CalldataMode != spec.CalldataStdin || len(runSpec.Calldata) == 0 {
			return nil
		}
		// The child may exit without reading; EPIPE is expected then.
		if _, err := p.stdinW.Write(runSpec.Calldata); err != nil &&
			!errors.Is(err, syscall.EPIPE) && !errors.Is(err, os.ErrClosed) {
			return fmt.Errorf("write calldata: %w", err)
		}
		return nil
	})
	g.Go(func() error { return stdout.drain(p.stdoutR) })
	g.Go(func() error { return stderr.drain(p.stderrR) })

	drained := make(chan error, 1)
	go func() { drained <- g.Wait() }()

	exited := make(chan error, 1)
	go func() {
		if awaitExit(pid) {
			killProcessGroup(pid)
		}
		exited <- cmd.Wait()
	}()

	var stdoutBreach, stderrBreach <-chan struct{}
	if e.cfg.OverflowPolicy == spec.OverflowFail {
		stdoutBreach = stdout.breach()
		stderrBreach = stderr.breach()
	}

	var (
		waitErr  error
		exitSeen bool
		canceled bool
	)
	select {
	case waitErr = <-exited:
		exitSeen = true
	case <-stdoutBreach:
	case <-stderrBreach:
	case <-timer.C:
	case <-ctx.Done():
		canceled = true
	}
	pastDeadline := !time.Now().Before(deadline)

	if !exitSeen {
		killProcessGroup(pid)
		waitErr = <-exited
	}

	grace := time.NewTimer(e.cfg.DrainGrace)
	select {
	case err := <-drained:
		grace.Stop()
		if err != nil {
			logger.Warn(ctx, "stream drain failed", zap.Int("pid", pid), zap.Error(err))
		}
	case <-grace.C:
		logger.Warn(ctx, "output still open after exit, closing pipes", zap.Int("pid", pid))
		p.closeParentEnds()
		<-drained
	}
	p.closeParentEnds()

	for _, stream := range []struct {
		name string
		d    *drainer
	}{{"stdout", stdout}, {"stderr", stderr}} {
		if stream.d.overflowed() {
			logger.Warn(ctx, "output exceeded cap",
				zap.Int("pid", pid),
				zap.String("stream", stream.name),
				zap.Int64("cap", stream.d.limit),
				zap.Int64("discarded_bytes", stream.d.discarded()),
				zap.String("policy", string(e.cfg.OverflowPolicy)),
			)
		}
	}

	switch {
	case pastDeadline || canceled:
		return result.Failed(result.OutcomeTimedOut)
	case e.cfg.OverflowPolicy == spec.OverflowFail && stdout.overflowed():
		return result.Failed(result.OutcomeStdoutOverflow)
	case e.cfg.OverflowPolicy == spec.OverflowFail && stderr.overflowed():
		return result.Failed(result.OutcomeStderrOverflow)
	}
	return result.Completed(exitCode(waitErr, cmd.ProcessState), stdout.bytes(), stderr.bytes())
}

// exitCode reports the exit status, or minus the signal number when the
// process was killed by a signal.
func exitCode(err error, state *os.ProcessState) int {
	if state != nil {
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return -int(ws.Signal())
		}
		return state.ExitCode()
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if runSpec.Path == "" {
		return fmt.Errorf("executable path is required")
	}
	if runSpec.TimeoutMillis < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}
