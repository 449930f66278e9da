// Package types provides the core data types for the agentd server.
package types

// Thread is a conversation-level container owning an ordered, append-only
// sequence of turns. Threads are persisted and survive process restarts;
// archival moves a thread out of the active set without mutating it.
type Thread struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Directory string     `json:"directory"`
	Archived  bool       `json:"archived,omitempty"`
	Time      ThreadTime `json:"time"`
}

// ThreadTime contains timestamps for a thread, in Unix milliseconds.
type ThreadTime struct {
	Created int64 `json:"created"`
	Updated int64 `json:"updated"`
}

// TurnStatus is the lifecycle status of a turn. A turn transitions from
// in_progress to exactly one terminal status and is immutable afterward.
type TurnStatus string

const (
	TurnInProgress  TurnStatus = "in_progress"
	TurnCompleted   TurnStatus = "completed"
	TurnInterrupted TurnStatus = "interrupted"
	TurnFailed      TurnStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TurnStatus) Terminal() bool {
	return s == TurnCompleted || s == TurnInterrupted || s == TurnFailed
}

// Turn is one request/response cycle within a thread.
type Turn struct {
	ID       string     `json:"id"`
	ThreadID string     `json:"threadID"`
	Status   TurnStatus `json:"status"`
	Items    []Item     `json:"items"`
	Error    *TurnError `json:"error,omitempty"`
	Usage    *Usage     `json:"usage,omitempty"`
	Time     TurnTime   `json:"time"`
}

// TurnError describes why a turn reached the failed status.
type TurnError struct {
	Message string `json:"message"`
}

// TurnTime contains timestamps for a turn, in Unix milliseconds.
type TurnTime struct {
	Started int64  `json:"started"`
	Ended   *int64 `json:"ended,omitempty"`
}

// Usage aggregates resource accounting for a completed turn.
type Usage struct {
	Commands   int   `json:"commands"`
	Approvals  int   `json:"approvals"`
	DurationMS int64 `json:"durationMS"`
}
