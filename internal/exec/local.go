package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	osexec "os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/agentd-ai/agentd/internal/logging"
	"github.com/agentd-ai/agentd/pkg/types"
)

// LocalRunner runs commands as local child processes. Each command gets
// its own process group so that cancellation reaches everything the
// command spawned, not just the direct child.
type LocalRunner struct {
	// DetectDenial overrides sandbox denial detection, mainly for tests.
	DetectDenial func(sandbox types.SandboxPolicy, exitCode int, output string) bool
}

// NewLocalRunner creates a runner executing commands on the local host.
func NewLocalRunner() *LocalRunner {
	return &LocalRunner{}
}

// Run executes the command and waits for it to finish or for ctx to be
// cancelled.
func (r *LocalRunner) Run(ctx context.Context, spec Spec, sandbox types.SandboxPolicy) (*Outcome, error) {
	if len(spec.Command) == 0 {
		return nil, errors.New("empty command")
	}

	timeout := spec.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if timeout > MaxTimeout {
		timeout = MaxTimeout
	}

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := osexec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Cwd
	cmd.Env = spec.Env
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-cmdCtx.Done():
		waitErr = killGroup(cmd, done)
	}
	duration := time.Since(start)

	outcome := &Outcome{
		AggregatedOutput: truncate(output.String()),
		Duration:         duration,
	}

	switch {
	case ctx.Err() != nil:
		outcome.Status = StatusCancelled
		return outcome, nil
	case cmdCtx.Err() == context.DeadlineExceeded:
		outcome.Status = StatusTimedOut
		outcome.AggregatedOutput += fmt.Sprintf("\n\n(Command timed out after %v)", timeout)
		return outcome, nil
	}

	exitCode := 0
	if waitErr != nil {
		var exitErr *osexec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return nil, fmt.Errorf("wait for command: %w", waitErr)
		}
		exitCode = exitErr.ExitCode()
	}
	outcome.ExitCode = exitCode

	if r.detectDenial(sandbox, exitCode, outcome.AggregatedOutput) {
		outcome.Status = StatusSandboxDenied
		logging.Debug().Strs("command", spec.Command).Int("exit", exitCode).Msg("sandbox denied command")
	} else {
		outcome.Status = StatusExited
	}
	return outcome, nil
}

func (r *LocalRunner) detectDenial(sandbox types.SandboxPolicy, exitCode int, output string) bool {
	if r.DetectDenial != nil {
		return r.DetectDenial(sandbox, exitCode, output)
	}
	if sandbox.FullAccess() || exitCode == 0 {
		return false
	}
	if exitCode == 126 {
		return true
	}
	for _, marker := range []string{
		"Operation not permitted",
		"Permission denied",
		"Read-only file system",
	} {
		if strings.Contains(output, marker) {
			return true
		}
	}
	return false
}

// killGroup terminates the command's process group and waits for the
// Wait goroutine to report back. Processes that ignore SIGTERM get a
// SIGKILL after SigkillTimeout.
func killGroup(cmd *osexec.Cmd, done <-chan error) error {
	if cmd.Process == nil {
		return <-done
	}
	pid := cmd.Process.Pid

	syscall.Kill(-pid, syscall.SIGTERM)
	select {
	case err := <-done:
		return err
	case <-time.After(SigkillTimeout):
		syscall.Kill(-pid, syscall.SIGKILL)
		return <-done
	}
}

func truncate(s string) string {
	if len(s) <= MaxOutputLength {
		return s
	}
	return s[:MaxOutputLength] + "\n\n(Output truncated)"
}
