// Package planner provides built-in planners. The turn controller accepts
// any Planner; the shell planner is the default used by the server binary,
// turning each text input into a shell command run under the normal
// approval and sandbox flow.
package planner

import (
	"context"
	"strings"

	"github.com/agentd-ai/agentd/internal/turn"
)

// ShellPlanner executes each line of the user's text input as one shell
// command. Lines in one input form one batch and may run concurrently.
type ShellPlanner struct {
	Shell string
}

// NewShellPlanner creates a planner running commands through the given
// shell, defaulting to bash.
func NewShellPlanner(shell string) *ShellPlanner {
	if shell == "" {
		shell = "bash"
	}
	return &ShellPlanner{Shell: shell}
}

// Plan turns text input lines into command batches.
func (p *ShellPlanner) Plan(ctx context.Context, req turn.PlanRequest) ([]turn.Action, error) {
	var commands []turn.CommandAction
	for _, input := range req.Input {
		if input.Type != "text" {
			continue
		}
		for _, line := range strings.Split(input.Text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			commands = append(commands, turn.CommandAction{
				Command: []string{p.Shell, "-lc", line},
			})
		}
	}

	if len(commands) == 0 {
		return []turn.Action{turn.SayAction{Text: "nothing to run"}}, nil
	}
	return []turn.Action{
		turn.CommandBatchAction{Commands: commands},
		turn.SayAction{Text: "all commands finished"},
	}, nil
}
