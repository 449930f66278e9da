package approval

import (
	"github.com/agentd-ai/agentd/internal/execpolicy"
	"github.com/agentd-ai/agentd/pkg/types"
)

// Reasons attached to approval requests and rejections.
const (
	ReasonForbidden     = "command policy forbids this command"
	ReasonPrompt        = "command policy requires approval for this command"
	ReasonUntrusted     = "command is not trusted to run unsupervised"
	ReasonEscalation    = "agent requested elevated permissions"
	ReasonSandboxDenied = "command failed because the sandbox denied it"
)

// Disposition is what should happen to a requested command.
type Disposition int

const (
	// RunSandboxed executes the command silently inside the sandbox.
	RunSandboxed Disposition = iota
	// RunUnsandboxed executes the command silently with no isolation.
	RunUnsandboxed
	// AskUser suspends the command until the client confirms it.
	AskUser
	// Reject fails the command without running it and without asking.
	Reject
)

// Assessment is the decision the engine produces for one command request.
type Assessment struct {
	Disposition Disposition
	Reason      string
	// Escalates marks an AskUser assessment whose approval grants
	// unsandboxed execution rather than a sandboxed run.
	Escalates bool
	// CachePrefix keys an approved_for_session answer: the matched rule
	// prefix, or the full command when no rule matched.
	CachePrefix []string
}

// CommandRequest describes one command the agent wants to run.
type CommandRequest struct {
	Command []string
	Cwd     string
	// Escalated is set when the agent explicitly asked for elevated
	// permissions for this command.
	Escalated bool
	// Justification is the agent's stated reason for escalation.
	Justification string
}

// Engine combines the command policy classification with the approval and
// sandbox policies to decide how each command runs. The classifier itself
// is pure; the engine reads the current policy through a getter so rule
// reloads take effect without rebuilding the engine.
type Engine struct {
	policy func() *execpolicy.Policy
}

// NewEngine creates an engine reading rules from the given source.
func NewEngine(policy func() *execpolicy.Policy) *Engine {
	if policy == nil {
		policy = func() *execpolicy.Policy { return execpolicy.Empty() }
	}
	return &Engine{policy: policy}
}

// Assess classifies a command and decides its initial disposition.
func (e *Engine) Assess(req CommandRequest, approvalPolicy types.ApprovalPolicy, sandbox types.SandboxPolicy, cache *Cache) Assessment {
	commands, ok := execpolicy.SplitShellInvocation(req.Command)
	if !ok {
		commands = [][]string{req.Command}
	}
	eval := e.policy().CheckAll(commands)

	silent := Assessment{Disposition: RunSandboxed}
	if sandbox.FullAccess() {
		silent = Assessment{Disposition: RunUnsandboxed}
	}

	if eval.Match {
		switch eval.Decision {
		case execpolicy.DecisionForbidden:
			// Never silently downgraded: without an escalation path this
			// is a hard failure, otherwise the user must confirm.
			if approvalPolicy == types.ApprovalNever {
				return Assessment{Disposition: Reject, Reason: ReasonForbidden}
			}
			return e.ask(req, cache, eval.StrictestPrefix(), ReasonForbidden, silent)
		case execpolicy.DecisionPrompt:
			if approvalPolicy == types.ApprovalNever {
				return silent
			}
			return e.ask(req, cache, eval.StrictestPrefix(), ReasonPrompt, silent)
		default:
			return silent
		}
	}

	// Unclassified command.
	switch approvalPolicy {
	case types.ApprovalNever, types.ApprovalOnFailure:
		return silent
	case types.ApprovalOnRequest:
		if !req.Escalated {
			return silent
		}
		reason := req.Justification
		if reason == "" {
			reason = ReasonEscalation
		}
		a := e.ask(req, cache, req.Command, reason, silent)
		a.Escalates = true
		return a
	default: // untrusted: unclassified is treated like prompt
		return e.ask(req, cache, req.Command, ReasonUntrusted, silent)
	}
}

// AssessRetry decides what happens after a sandboxed run failed with a
// sandbox denial: offer an unsandboxed retry behind approval, or fail.
func (e *Engine) AssessRetry(req CommandRequest, approvalPolicy types.ApprovalPolicy) Assessment {
	switch approvalPolicy {
	case types.ApprovalNever, types.ApprovalOnRequest:
		// No escalation path without the agent asking for one.
		return Assessment{Disposition: Reject, Reason: ReasonSandboxDenied}
	default:
		return Assessment{
			Disposition: AskUser,
			Reason:      ReasonSandboxDenied,
			Escalates:   true,
			CachePrefix: req.Command,
		}
	}
}

func (e *Engine) ask(req CommandRequest, cache *Cache, prefix []string, reason string, silent Assessment) Assessment {
	if cache != nil {
		if covered, escalated := cache.Covers(req.Command); covered {
			if escalated {
				return Assessment{Disposition: RunUnsandboxed}
			}
			return silent
		}
	}
	return Assessment{Disposition: AskUser, Reason: reason, CachePrefix: prefix}
}
