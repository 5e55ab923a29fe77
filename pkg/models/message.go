package models

import "time"

// MessageRole identifies who produced a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// ExecutionState tracks the in-transcript lifecycle of a triggered action.
type ExecutionState string

const (
	ExecutionStateNone      ExecutionState = "none"
	ExecutionStateExecuting ExecutionState = "executing"
	ExecutionStateCancelled ExecutionState = "cancelled"
)

// ChatMessage is one entry of a conversation transcript. Messages are
// appended and never mutated, except for the executionState transition and
// the in-place rewrite when an execution is cancelled.
type ChatMessage struct {
	ID                 string         `json:"id"`
	Role               MessageRole    `json:"role"`
	Text               string         `json:"text"`
	CreatedAt          time.Time      `json:"created_at"`
	MatchedActionID    string         `json:"matched_action_id,omitempty"`
	SuggestedActionIDs []string       `json:"suggested_action_ids,omitempty"`
	ExecutionState     ExecutionState `json:"execution_state,omitempty"`
	IsError            bool           `json:"is_error,omitempty"`
}
