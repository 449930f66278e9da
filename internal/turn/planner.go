package turn

import (
	"context"
	"time"

	"github.com/agentd-ai/agentd/pkg/types"
)

// Planner decides what the agent does with a turn's input. The controller
// owns the lifecycle around it: the planner proposes actions and the
// controller executes them under the approval and sandbox policies.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) ([]Action, error)
}

// PlanRequest is everything a planner gets to see for one turn.
type PlanRequest struct {
	Thread *types.Thread
	TurnID string
	Input  []types.UserInput
	// History holds the thread's prior turns in creation order.
	History []*types.Turn
}

// Action is one step proposed by the planner. The set of variants is
// closed; the controller dispatches on the concrete type.
type Action interface {
	isAction()
}

// SayAction emits a natural-language message to the user.
type SayAction struct {
	Text string
}

// ReasonAction emits a reasoning summary.
type ReasonAction struct {
	Text string
}

// CommandAction is one command within a batch.
type CommandAction struct {
	Command []string
	Cwd     string
	// Escalated asks to run outside the sandbox, with Justification as
	// the stated reason.
	Escalated     bool
	Justification string
	Timeout       time.Duration
}

// CommandBatchAction runs a set of independent commands. Commands in one
// batch may run concurrently; batches execute in order.
type CommandBatchAction struct {
	Commands []CommandAction
}

// FileEdit is one file-level change within a FileChangeAction.
type FileEdit struct {
	Path       string
	Kind       types.FileChangeKind
	OldContent string
	NewContent string
}

// FileChangeAction applies a set of file edits as one atomic item.
type FileChangeAction struct {
	Edits []FileEdit
}

// TodoAction publishes the agent's current task list.
type TodoAction struct {
	Items []types.TodoItem
}

// WebSearchAction records a web search issued by the agent.
type WebSearchAction struct {
	Query string
}

func (SayAction) isAction()          {}
func (ReasonAction) isAction()       {}
func (CommandBatchAction) isAction() {}
func (FileChangeAction) isAction()   {}
func (TodoAction) isAction()         {}
func (WebSearchAction) isAction()    {}
