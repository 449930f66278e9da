package event

import "github.com/agentd-ai/agentd/pkg/types"

// ThreadCreatedData is the payload for thread.created events.
type ThreadCreatedData struct {
	Thread *types.Thread `json:"thread"`
}

// ThreadArchivedData is the payload for thread.archived events.
type ThreadArchivedData struct {
	Thread *types.Thread `json:"thread"`
}

// TurnStartedData is the payload for turn.started events.
type TurnStartedData struct {
	Turn *types.Turn `json:"turn"`
}

// TurnCompletedData is the payload for turn.completed events. Status is
// either completed or interrupted.
type TurnCompletedData struct {
	Turn  *types.Turn  `json:"turn"`
	Usage *types.Usage `json:"usage,omitempty"`
}

// TurnFailedData is the payload for turn.failed events.
type TurnFailedData struct {
	Turn  *types.Turn      `json:"turn"`
	Error *types.TurnError `json:"error"`
}

// ItemData is the payload for item.started, item.updated and item.completed
// events.
type ItemData struct {
	ThreadID string     `json:"threadID"`
	TurnID   string     `json:"turnID"`
	Item     types.Item `json:"item"`
}

// ApprovalRequestedData is the payload for approval.requested events. One
// of Command or Changes is set, depending on the kind of approval.
type ApprovalRequestedData struct {
	ID       string                   `json:"id"`
	ThreadID string                   `json:"threadID"`
	TurnID   string                   `json:"turnID"`
	CallID   string                   `json:"callID,omitempty"`
	Command  []string                 `json:"command,omitempty"`
	Cwd      string                   `json:"cwd,omitempty"`
	Changes  []types.FileUpdateChange `json:"changes,omitempty"`
	Reason   string                   `json:"reason,omitempty"`
	// GrantRoot is the directory whose write access the approval would
	// grant, for file-change approvals.
	GrantRoot string `json:"grantRoot,omitempty"`
}

// ApprovalResolvedData is the payload for approval.resolved events.
type ApprovalResolvedData struct {
	ID       string `json:"id"`
	Decision string `json:"decision"`
}
