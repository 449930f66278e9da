// Package turn runs the turn lifecycle: planning, command execution under
// the approval and sandbox policies, item event ordering, and
// interruption.
package turn

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/agentd-ai/agentd/internal/approval"
	"github.com/agentd-ai/agentd/internal/event"
	"github.com/agentd-ai/agentd/internal/exec"
	"github.com/agentd-ai/agentd/internal/logging"
	"github.com/agentd-ai/agentd/internal/thread"
	"github.com/agentd-ai/agentd/pkg/types"
)

// ErrTurnActive is returned when a thread already has a turn in progress.
var ErrTurnActive = errors.New("thread already has a turn in progress")

// ErrUnknownTurn is returned when an interrupt names a turn that does not
// exist.
var ErrUnknownTurn = errors.New("unknown turn")

// DefaultMaxConcurrentCommands bounds how many commands of one batch run
// at once.
const DefaultMaxConcurrentCommands = 4

// Options are the controller-wide execution defaults. A turn may override
// the approval and sandbox policies for its own duration.
type Options struct {
	ApprovalPolicy        types.ApprovalPolicy
	Sandbox               types.SandboxPolicy
	Cwd                   string
	MaxConcurrentCommands int
	CommandTimeout        time.Duration
}

// Overrides narrows or widens the policies for a single turn. Cwd
// changes the working directory commands and file changes resolve
// against, for this turn only.
type Overrides struct {
	ApprovalPolicy *types.ApprovalPolicy
	Sandbox        *types.SandboxPolicy
	Cwd            string
}

// Controller drives turns. One controller serves all threads; each thread
// has at most one turn in progress, and each thread keeps its own
// approved_for_session cache for as long as the process lives.
type Controller struct {
	threads   *thread.Service
	engine    *approval.Engine
	approvals *approval.Service
	runner    exec.Runner
	planner   Planner
	defaults  Options

	mu     sync.Mutex
	active map[string]*activeTurn
	caches map[string]*approval.Cache
}

type activeTurn struct {
	turnID string
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a turn controller.
func NewController(threads *thread.Service, engine *approval.Engine, approvals *approval.Service, runner exec.Runner, planner Planner, defaults Options) *Controller {
	if defaults.MaxConcurrentCommands <= 0 {
		defaults.MaxConcurrentCommands = DefaultMaxConcurrentCommands
	}
	if !defaults.ApprovalPolicy.Valid() {
		defaults.ApprovalPolicy = types.ApprovalOnRequest
	}
	return &Controller{
		threads:   threads,
		engine:    engine,
		approvals: approvals,
		runner:    runner,
		planner:   planner,
		defaults:  defaults,
		active:    make(map[string]*activeTurn),
		caches:    make(map[string]*approval.Cache),
	}
}

// StartTurn begins a new turn on a thread. It returns immediately with
// the in_progress turn; execution continues in the background until the
// turn reaches a terminal status.
func (c *Controller) StartTurn(ctx context.Context, threadID string, input []types.UserInput, overrides *Overrides) (*types.Turn, error) {
	th, err := c.threads.Get(ctx, threadID)
	if err != nil {
		return nil, err
	}

	turn := &types.Turn{
		ID:       ulid.Make().String(),
		ThreadID: threadID,
		Status:   types.TurnInProgress,
		Time:     types.TurnTime{Started: time.Now().UnixMilli()},
	}

	runCtx, cancel := context.WithCancel(context.Background())
	at := &activeTurn{turnID: turn.ID, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if _, busy := c.active[threadID]; busy {
		c.mu.Unlock()
		cancel()
		return nil, ErrTurnActive
	}
	c.active[threadID] = at
	cache, ok := c.caches[threadID]
	if !ok {
		cache = approval.NewCache()
		c.caches[threadID] = cache
	}
	c.mu.Unlock()

	event.Publish(event.Event{Type: event.TurnStarted, Data: event.TurnStartedData{Turn: turn}})

	go c.runTurn(runCtx, at, th, turn, input, cache, c.resolveOptions(overrides))
	return turn, nil
}

// Interrupt stops a thread's in-progress turn and waits until the turn
// has settled all of its items and reached a terminal status.
// Interrupting a turn that already ended is a no-op; interrupting one
// that never existed is an error.
func (c *Controller) Interrupt(ctx context.Context, threadID, turnID string) error {
	c.mu.Lock()
	at := c.active[threadID]
	c.mu.Unlock()

	if at == nil || at.turnID != turnID {
		return c.checkSettled(ctx, threadID, turnID)
	}

	at.cancel()
	select {
	case <-at.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// checkSettled distinguishes an already-finished turn from an unknown one.
func (c *Controller) checkSettled(ctx context.Context, threadID, turnID string) error {
	turns, err := c.threads.Turns(ctx, threadID)
	if err != nil {
		return err
	}
	for _, t := range turns {
		if t.ID == turnID {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownTurn, turnID)
}

func (c *Controller) resolveOptions(overrides *Overrides) Options {
	opts := c.defaults
	if overrides != nil {
		if overrides.ApprovalPolicy != nil && overrides.ApprovalPolicy.Valid() {
			opts.ApprovalPolicy = *overrides.ApprovalPolicy
		}
		if overrides.Sandbox != nil {
			opts.Sandbox = *overrides.Sandbox
		}
		if overrides.Cwd != "" {
			opts.Cwd = overrides.Cwd
		}
	}
	return opts
}

// turnRun is the mutable state of one executing turn.
type turnRun struct {
	ctrl    *Controller
	thread  *types.Thread
	turn    *types.Turn
	cache   *approval.Cache
	opts    Options
	aborted atomic.Bool

	mu        sync.Mutex
	items     []types.Item
	commands  int
	approvals int
}

func (c *Controller) runTurn(ctx context.Context, at *activeTurn, th *types.Thread, turn *types.Turn, input []types.UserInput, cache *approval.Cache, opts Options) {
	defer close(at.done)
	defer func() {
		c.mu.Lock()
		delete(c.active, th.ID)
		c.mu.Unlock()
	}()

	if opts.Cwd != "" {
		scoped := *th
		scoped.Directory = opts.Cwd
		th = &scoped
	}
	run := &turnRun{ctrl: c, thread: th, turn: turn, cache: cache, opts: opts}
	started := time.Now()

	run.emitInstant(&types.UserMessageItem{
		ID:      newItemID(),
		Type:    "user_message",
		Content: input,
	})

	history, err := c.threads.Turns(ctx, th.ID)
	if err != nil {
		history = nil
	}

	var turnErr *types.TurnError
	actions, err := c.planner.Plan(ctx, PlanRequest{
		Thread:  th,
		TurnID:  turn.ID,
		Input:   input,
		History: history,
	})
	if err != nil && ctx.Err() == nil {
		turnErr = &types.TurnError{Message: fmt.Sprintf("planning failed: %v", err)}
	}

	for _, action := range actions {
		if ctx.Err() != nil || run.aborted.Load() {
			break
		}
		run.execute(ctx, action)
	}

	status := types.TurnCompleted
	switch {
	case run.aborted.Load():
		status = types.TurnFailed
		turnErr = &types.TurnError{Message: "aborted by user"}
	case turnErr != nil:
		status = types.TurnFailed
	case ctx.Err() != nil:
		status = types.TurnInterrupted
	}

	ended := time.Now().UnixMilli()
	turn.Status = status
	turn.Items = run.items
	turn.Error = turnErr
	turn.Time.Ended = &ended
	turn.Usage = &types.Usage{
		Commands:   run.commands,
		Approvals:  run.approvals,
		DurationMS: time.Since(started).Milliseconds(),
	}

	// Persistence must survive the interrupt that ended the turn.
	if err := c.threads.SaveTurn(context.Background(), turn); err != nil {
		logging.Error().Err(err).Str("turn", turn.ID).Msg("failed to persist turn")
	}

	if status == types.TurnFailed {
		event.Publish(event.Event{Type: event.TurnFailed, Data: event.TurnFailedData{Turn: turn, Error: turnErr}})
	} else {
		event.Publish(event.Event{Type: event.TurnCompleted, Data: event.TurnCompletedData{Turn: turn, Usage: turn.Usage}})
	}
}

func (r *turnRun) execute(ctx context.Context, action Action) {
	switch a := action.(type) {
	case SayAction:
		r.emitInstant(&types.AgentMessageItem{ID: newItemID(), Type: "agent_message", Text: a.Text})
	case ReasonAction:
		r.emitInstant(&types.ReasoningItem{ID: newItemID(), Type: "reasoning", Text: a.Text})
	case TodoAction:
		r.emitInstant(&types.TodoListItem{ID: newItemID(), Type: "todo_list", Items: a.Items})
	case WebSearchAction:
		r.emitInstant(&types.WebSearchItem{ID: newItemID(), Type: "web_search", Query: a.Query})
	case CommandBatchAction:
		r.executeBatch(ctx, a)
	case FileChangeAction:
		r.applyFileChange(ctx, a)
	}
}

// executeBatch runs a batch's commands with bounded concurrency. Only a
// command waiting on approval suspends; the rest of the batch keeps
// going.
func (r *turnRun) executeBatch(ctx context.Context, batch CommandBatchAction) {
	sem := make(chan struct{}, r.opts.MaxConcurrentCommands)
	var wg sync.WaitGroup

	for _, cmd := range batch.Commands {
		wg.Add(1)
		go func(cmd CommandAction) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			r.runCommand(ctx, cmd)
		}(cmd)
	}
	wg.Wait()
}

func (r *turnRun) runCommand(ctx context.Context, cmd CommandAction) {
	cwd := cmd.Cwd
	if cwd == "" {
		cwd = r.thread.Directory
	}

	item := &types.CommandExecutionItem{
		ID:      newItemID(),
		Type:    "command_execution",
		Command: strings.Join(cmd.Command, " "),
		Cwd:     cwd,
		Status:  types.ItemInProgress,
	}
	r.emitItem(event.ItemStarted, item)

	assessment := r.ctrl.engine.Assess(approval.CommandRequest{
		Command:       cmd.Command,
		Cwd:           cwd,
		Escalated:     cmd.Escalated,
		Justification: cmd.Justification,
	}, r.opts.ApprovalPolicy, r.opts.Sandbox, r.cache)

	sandbox := r.opts.Sandbox
	switch assessment.Disposition {
	case approval.Reject:
		r.failCommand(item, assessment.Reason)
		return
	case approval.RunUnsandboxed:
		sandbox = types.FullAccessPolicy()
	case approval.AskUser:
		decision, err := r.requestApproval(ctx, cmd.Command, cwd, assessment)
		if err != nil {
			r.failCommand(item, "approval abandoned")
			return
		}
		if !decision.Granted() {
			if decision == approval.Abort {
				r.aborted.Store(true)
			}
			r.failCommand(item, "denied by user")
			return
		}
		if assessment.Escalates {
			sandbox = types.FullAccessPolicy()
		}
	}

	outcome := r.run(ctx, cmd, cwd, sandbox)
	if outcome == nil {
		r.failCommand(item, "execution failed")
		return
	}

	// A sandbox denial may earn an unsandboxed retry behind approval.
	if outcome.Status == exec.StatusSandboxDenied {
		retry := r.ctrl.engine.AssessRetry(approval.CommandRequest{Command: cmd.Command, Cwd: cwd}, r.opts.ApprovalPolicy)
		if retry.Disposition == approval.AskUser {
			decision, err := r.requestApproval(ctx, cmd.Command, cwd, retry)
			if err == nil && decision.Granted() {
				if retried := r.run(ctx, cmd, cwd, types.FullAccessPolicy()); retried != nil {
					outcome = retried
				}
			} else if decision == approval.Abort {
				r.aborted.Store(true)
			}
		}
	}

	r.finishCommand(item, outcome)
}

func (r *turnRun) run(ctx context.Context, cmd CommandAction, cwd string, sandbox types.SandboxPolicy) *exec.Outcome {
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.opts.CommandTimeout
	}

	outcome, err := r.ctrl.runner.Run(ctx, exec.Spec{
		Command: cmd.Command,
		Cwd:     cwd,
		Timeout: timeout,
	}, sandbox)
	if err != nil {
		logging.Error().Err(err).Strs("command", cmd.Command).Msg("command execution failed")
		return nil
	}

	r.mu.Lock()
	r.commands++
	r.mu.Unlock()
	return outcome
}

// requestApproval suspends the calling command until the client answers,
// and records session-wide grants in the cache.
func (r *turnRun) requestApproval(ctx context.Context, command []string, cwd string, assessment approval.Assessment) (approval.ReviewDecision, error) {
	r.mu.Lock()
	r.approvals++
	r.mu.Unlock()

	decision, err := r.ctrl.approvals.RequestExec(ctx, approval.ExecRequest{
		ThreadID: r.thread.ID,
		TurnID:   r.turn.ID,
		Command:  command,
		Cwd:      cwd,
		Reason:   assessment.Reason,
	})
	if err != nil {
		return "", err
	}
	if decision == approval.ApprovedForSession {
		r.cache.Approve(assessment.CachePrefix, assessment.Escalates)
	}
	return decision, nil
}

func (r *turnRun) finishCommand(item *types.CommandExecutionItem, outcome *exec.Outcome) {
	durationMS := outcome.Duration.Milliseconds()
	item.AggregatedOutput = outcome.AggregatedOutput
	item.DurationMS = &durationMS
	if outcome.Status == exec.StatusExited || outcome.Status == exec.StatusSandboxDenied {
		exitCode := outcome.ExitCode
		item.ExitCode = &exitCode
	}
	r.emitItem(event.ItemUpdated, item)

	if outcome.Failed() {
		item.Status = types.ItemFailed
	} else {
		item.Status = types.ItemCompleted
	}
	r.emitItem(event.ItemCompleted, item)
	r.record(item)
}

func (r *turnRun) failCommand(item *types.CommandExecutionItem, reason string) {
	item.AggregatedOutput = reason
	item.Status = types.ItemFailed
	r.emitItem(event.ItemCompleted, item)
	r.record(item)
}

// emitInstant publishes an item that has no in-progress phase.
func (r *turnRun) emitInstant(item types.Item) {
	r.emitItem(event.ItemStarted, item)
	r.emitItem(event.ItemCompleted, item)
	r.record(item)
}

func (r *turnRun) emitItem(eventType event.EventType, item types.Item) {
	event.Publish(event.Event{
		Type: eventType,
		Data: event.ItemData{ThreadID: r.thread.ID, TurnID: r.turn.ID, Item: types.CloneItem(item)},
	})
}

func (r *turnRun) record(item types.Item) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
}

func newItemID() string {
	return "item_" + ulid.Make().String()
}
