// Package result defines the execution result record and outcome mapping.
package result

// Outcome is the terminal state of one execution.
type Outcome string

const (
	OutcomeCompleted      Outcome = "completed"
	OutcomeTimedOut       Outcome = "timed_out"
	OutcomeStdoutOverflow Outcome = "stdout_overflow"
	OutcomeStderrOverflow Outcome = "stderr_overflow"
	OutcomeSpawnFailed    Outcome = "spawn_failed"
)

// Synthetic return codes reported instead of a real exit status.
const (
	CodeTimedOut       = 111
	CodeStdoutOverflow = 112
	CodeStderrOverflow = 113
	CodeSpawnFailed    = 126
)

// Error labels carried in Record.Err.
const (
	ErrSpawnFailed    = "Execution fail"
	ErrTimedOut       = "Execution time limit exceeded"
	ErrStdoutOverflow = "Stdout exceeded max size"
	ErrStderrOverflow = "Stderr exceeded max size"
)

// Record is the response body for one execution.
type Record struct {
	Returncode int    `json:"returncode"`
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	Err        string `json:"err"`
}

// Completed builds the record of a process that ran to exit.
func Completed(exitCode int, stdout, stderr []byte) Record {
	return Record{Returncode: exitCode, Stdout: string(stdout), Stderr: string(stderr)}
}

// Failed builds the record of a non-completed outcome.
func Failed(o Outcome) Record {
	switch o {
	case OutcomeTimedOut:
		return Record{Returncode: CodeTimedOut, Err: ErrTimedOut}
	case OutcomeStdoutOverflow:
		return Record{Returncode: CodeStdoutOverflow, Err: ErrStdoutOverflow}
	case OutcomeStderrOverflow:
		return Record{Returncode: CodeStderrOverflow, Err: ErrStderrOverflow}
	default:
		return Record{Returncode: CodeSpawnFailed, Err: ErrSpawnFailed}
	}
}

// OutcomeOf recovers the outcome of a record.
func OutcomeOf(r Record) Outcome {
	switch {
	case r.Err == "":
		return OutcomeCompleted
	case r.Returncode == CodeTimedOut && r.Err == ErrTimedOut:
		return OutcomeTimedOut
	case r.Returncode == CodeStdoutOverflow && r.Err == ErrStdoutOverflow:
		return OutcomeStdoutOverflow
	case r.Returncode == CodeStderrOverflow && r.Err == ErrStderrOverflow:
		return OutcomeStderrOverflow
	default:
		return OutcomeSpawnFailed
	}
}

// Execution pairs a record with its outcome and timing for observers.
type Execution struct {
	Record     Record
	Outcome    Outcome
	WallTimeMs int64
	Pid        int
}
