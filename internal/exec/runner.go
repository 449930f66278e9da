package exec

import (
	"context"
	"time"

	"github.com/agentd-ai/agentd/pkg/types"
)

const (
	// DefaultTimeout bounds commands that do not carry their own timeout.
	DefaultTimeout = 120 * time.Second
	// MaxTimeout caps per-command timeouts regardless of what was asked.
	MaxTimeout = 10 * time.Minute
	// MaxOutputLength truncates aggregated output beyond this many bytes.
	MaxOutputLength = 30000
	// SigkillTimeout is how long a process group gets to exit after
	// SIGTERM before it is killed.
	SigkillTimeout = 200 * time.Millisecond
)

// Status describes how a command run ended.
type Status string

const (
	// StatusExited means the process ran to completion and reported an
	// exit code, zero or not.
	StatusExited Status = "exited"
	// StatusSandboxDenied means the process failed in a way attributable
	// to the sandbox rather than the command itself.
	StatusSandboxDenied Status = "sandbox_denied"
	// StatusCancelled means the run was interrupted before completion.
	StatusCancelled Status = "cancelled"
	// StatusTimedOut means the run exceeded its timeout.
	StatusTimedOut Status = "timed_out"
)

// Spec describes one command to execute.
type Spec struct {
	Command []string
	Cwd     string
	Env     []string
	// Timeout of zero means DefaultTimeout.
	Timeout time.Duration
}

// Outcome is the result of one command run.
type Outcome struct {
	Status Status
	// ExitCode is meaningful only when Status is StatusExited or
	// StatusSandboxDenied.
	ExitCode int
	// AggregatedOutput interleaves stdout and stderr in arrival order,
	// truncated at MaxOutputLength.
	AggregatedOutput string
	Duration         time.Duration
}

// Failed reports whether the outcome should mark its item failed.
func (o *Outcome) Failed() bool {
	return o.Status != StatusExited || o.ExitCode != 0
}

// Runner executes commands under a sandbox envelope. Cancelling ctx stops
// the run and everything it spawned.
type Runner interface {
	Run(ctx context.Context, spec Spec, sandbox types.SandboxPolicy) (*Outcome, error)
}
