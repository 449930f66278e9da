package types

import (
	"encoding/json"
	"fmt"
)

// ItemStatus is the lifecycle status of a long-running item.
type ItemStatus string

const (
	ItemInProgress ItemStatus = "in_progress"
	ItemCompleted  ItemStatus = "completed"
	ItemFailed     ItemStatus = "failed"
)

// Item is a discrete unit of work or message within a turn. The set of
// variants is closed: every item is one of the concrete types below, and
// consumers dispatch on ItemType.
type Item interface {
	ItemType() string
	ItemID() string
}

// UserMessageItem carries the user input that started a turn.
type UserMessageItem struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"` // always "user_message"
	Content []UserInput `json:"content"`
}

func (i *UserMessageItem) ItemType() string { return "user_message" }
func (i *UserMessageItem) ItemID() string   { return i.ID }

// AgentMessageItem is natural-language output from the agent.
type AgentMessageItem struct {
	ID   string `json:"id"`
	Type string `json:"type"` // always "agent_message"
	Text string `json:"text"`
}

func (i *AgentMessageItem) ItemType() string { return "agent_message" }
func (i *AgentMessageItem) ItemID() string   { return i.ID }

// ReasoningItem is a summary of the agent's reasoning.
type ReasoningItem struct {
	ID   string `json:"id"`
	Type string `json:"type"` // always "reasoning"
	Text string `json:"text"`
}

func (i *ReasoningItem) ItemType() string { return "reasoning" }
func (i *ReasoningItem) ItemID() string   { return i.ID }

// CommandExecutionItem tracks one command run on behalf of the agent.
type CommandExecutionItem struct {
	ID               string     `json:"id"`
	Type             string     `json:"type"` // always "command_execution"
	Command          string     `json:"command"`
	Cwd              string     `json:"cwd,omitempty"`
	AggregatedOutput string     `json:"aggregatedOutput"`
	ExitCode         *int       `json:"exitCode,omitempty"`
	Status           ItemStatus `json:"status"`
	DurationMS       *int64     `json:"durationMS,omitempty"`
}

func (i *CommandExecutionItem) ItemType() string { return "command_execution" }
func (i *CommandExecutionItem) ItemID() string   { return i.ID }

// FileChangeItem records a set of file edits applied in the workspace.
type FileChangeItem struct {
	ID      string             `json:"id"`
	Type    string             `json:"type"` // always "file_change"
	Changes []FileUpdateChange `json:"changes"`
	Status  ItemStatus         `json:"status"`
}

func (i *FileChangeItem) ItemType() string { return "file_change" }
func (i *FileChangeItem) ItemID() string   { return i.ID }

// FileChangeKind discriminates how a file was changed.
type FileChangeKind string

const (
	FileAdd    FileChangeKind = "add"
	FileDelete FileChangeKind = "delete"
	FileUpdate FileChangeKind = "update"
)

// FileUpdateChange is one file-level entry within a FileChangeItem.
type FileUpdateChange struct {
	Path string         `json:"path"`
	Kind FileChangeKind `json:"kind"`
	Diff string         `json:"diff,omitempty"`
}

// McpToolCallItem tracks an MCP tool invocation performed by a collaborator.
type McpToolCallItem struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"` // always "mcp_tool_call"
	Server    string          `json:"server"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	Status    ItemStatus      `json:"status"`
	Output    string          `json:"output,omitempty"`
	Error     string          `json:"error,omitempty"`
}

func (i *McpToolCallItem) ItemType() string { return "mcp_tool_call" }
func (i *McpToolCallItem) ItemID() string   { return i.ID }

// WebSearchItem records a web search issued during the turn.
type WebSearchItem struct {
	ID    string `json:"id"`
	Type  string `json:"type"` // always "web_search"
	Query string `json:"query"`
}

func (i *WebSearchItem) ItemType() string { return "web_search" }
func (i *WebSearchItem) ItemID() string   { return i.ID }

// TodoListItem is the agent's current task list.
type TodoListItem struct {
	ID    string     `json:"id"`
	Type  string     `json:"type"` // always "todo_list"
	Items []TodoItem `json:"items"`
}

func (i *TodoListItem) ItemType() string { return "todo_list" }
func (i *TodoListItem) ItemID() string   { return i.ID }

// TodoItem is one entry in a todo list.
type TodoItem struct {
	Text      string `json:"text"`
	Completed bool   `json:"completed"`
}

// ErrorItem surfaces a non-fatal error encountered during the turn.
type ErrorItem struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // always "error"
	Message string `json:"message"`
}

func (i *ErrorItem) ItemType() string { return "error" }
func (i *ErrorItem) ItemID() string   { return i.ID }

// UnmarshalItem decodes a JSON item into the concrete variant based on its
// "type" field.
func UnmarshalItem(data []byte) (Item, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, err
	}

	var item Item
	switch tag.Type {
	case "user_message":
		item = &UserMessageItem{}
	case "agent_message":
		item = &AgentMessageItem{}
	case "reasoning":
		item = &ReasoningItem{}
	case "command_execution":
		item = &CommandExecutionItem{}
	case "file_change":
		item = &FileChangeItem{}
	case "mcp_tool_call":
		item = &McpToolCallItem{}
	case "web_search":
		item = &WebSearchItem{}
	case "todo_list":
		item = &TodoListItem{}
	case "error":
		item = &ErrorItem{}
	default:
		return nil, fmt.Errorf("unknown item type %q", tag.Type)
	}

	if err := json.Unmarshal(data, item); err != nil {
		return nil, err
	}
	return item, nil
}

// CloneItem returns a snapshot of an item. Observers receive snapshots
// so that later lifecycle transitions on the live item never show
// through an already delivered notification.
func CloneItem(item Item) Item {
	switch it := item.(type) {
	case *UserMessageItem:
		c := *it
		return &c
	case *AgentMessageItem:
		c := *it
		return &c
	case *ReasoningItem:
		c := *it
		return &c
	case *CommandExecutionItem:
		c := *it
		return &c
	case *FileChangeItem:
		c := *it
		c.Changes = append([]FileUpdateChange(nil), it.Changes...)
		return &c
	case *McpToolCallItem:
		c := *it
		return &c
	case *WebSearchItem:
		c := *it
		return &c
	case *TodoListItem:
		c := *it
		c.Items = append([]TodoItem(nil), it.Items...)
		return &c
	case *ErrorItem:
		c := *it
		return &c
	}
	return item
}

// UnmarshalJSON decodes a turn, dispatching each item to its variant.
func (t *Turn) UnmarshalJSON(data []byte) error {
	type alias Turn
	raw := struct {
		*alias
		Items []json.RawMessage `json:"items"`
	}{alias: (*alias)(t)}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.Items = make([]Item, 0, len(raw.Items))
	for _, itemData := range raw.Items {
		item, err := UnmarshalItem(itemData)
		if err != nil {
			return err
		}
		t.Items = append(t.Items, item)
	}
	return nil
}
