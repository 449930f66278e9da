// Package approval decides whether a requested command may run
// unsupervised and, when it may not, drives the confirmation round-trip
// with the client.
package approval

import (
	"fmt"

	"github.com/agentd-ai/agentd/pkg/types"
)

// ReviewDecision is the client's answer to an approval request.
type ReviewDecision string

const (
	// Approved permits this one request.
	Approved ReviewDecision = "approved"
	// ApprovedForSession permits this request and remembers the decision
	// for matching requests for the rest of the session.
	ApprovedForSession ReviewDecision = "approved_for_session"
	// Denied fails only the requesting item.
	Denied ReviewDecision = "denied"
	// Abort fails the entire enclosing turn.
	Abort ReviewDecision = "abort"
)

// ParseReviewDecision validates a decision received from the client.
func ParseReviewDecision(s string) (ReviewDecision, error) {
	switch d := ReviewDecision(s); d {
	case Approved, ApprovedForSession, Denied, Abort:
		return d, nil
	default:
		return "", fmt.Errorf("unknown review decision %q", s)
	}
}

// Granted reports whether the decision permits the request to proceed.
func (d ReviewDecision) Granted() bool {
	return d == Approved || d == ApprovedForSession
}

// DeniedError is returned when the client denies a request.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string {
	if e.Reason == "" {
		return "denied by user"
	}
	return e.Reason
}

// UnknownRequestError is returned when a client resolves an approval id
// that is not pending. It is a protocol error local to that call; other
// in-flight work is unaffected.
type UnknownRequestError struct {
	ID string
}

func (e *UnknownRequestError) Error() string {
	return fmt.Sprintf("no pending approval request with id %q", e.ID)
}

// ExecRequest asks the client to confirm a command execution.
type ExecRequest struct {
	ID       string   `json:"id"`
	ThreadID string   `json:"threadID"`
	TurnID   string   `json:"turnID"`
	CallID   string   `json:"callID,omitempty"`
	Command  []string `json:"command"`
	Cwd      string   `json:"cwd,omitempty"`
	Reason   string   `json:"reason,omitempty"`
}

// PatchRequest asks the client to confirm a set of file changes.
type PatchRequest struct {
	ID        string                   `json:"id"`
	ThreadID  string                   `json:"threadID"`
	TurnID    string                   `json:"turnID"`
	CallID    string                   `json:"callID,omitempty"`
	Changes   []types.FileUpdateChange `json:"changes"`
	Reason    string                   `json:"reason,omitempty"`
	GrantRoot string                   `json:"grantRoot,omitempty"`
}
