// Package web provides HTTP request and response types for the console API.
package web

import (
	"time"

	"github.com/opsdeck/opsdeck/pkg/conversation"
)

// CreateActionRequest represents the request body for registering a new action.
type CreateActionRequest struct {
	Kind        string   `json:"kind"        validate:"required,oneof=api script env"`
	Name        string   `json:"name"        validate:"required,min=1"`
	Description string   `json:"description"`
	Content     string   `json:"content"     validate:"required"`
	Method      string   `json:"method,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateActionRequest represents the request body for updating a registered
// action. All fields are optional to support partial updates; Kind cannot
// be changed.
type UpdateActionRequest struct {
	Name        *string  `json:"name,omitempty"        validate:"omitempty,min=1"`
	Description *string  `json:"description,omitempty"`
	Content     *string  `json:"content,omitempty"     validate:"omitempty,min=1"`
	Method      *string  `json:"method,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// PostMessageRequest represents a user chat message submitted to a session.
type PostMessageRequest struct {
	Text   string `json:"text"             validate:"required,min=1"`
	Locale string `json:"locale,omitempty"`
}

// EnqueueExecutionRequest submits one execution attempt. MessageID points
// at the assistant message that proposed the action; it may be empty.
type EnqueueExecutionRequest struct {
	ActionID  string `json:"action_id"            validate:"required"`
	MessageID string `json:"message_id,omitempty"`
}

// CreateScheduleRequest binds an action to a cron expression. Enabled
// defaults to true when omitted.
type CreateScheduleRequest struct {
	ActionID string `json:"action_id" validate:"required"`
	Cron     string `json:"cron"      validate:"required"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// SessionResponse is the session summary returned by the session endpoints.
type SessionResponse struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

// TransformSessionResponse summarizes a session for listing.
func TransformSessionResponse(session *conversation.Session) SessionResponse {
	return SessionResponse{
		ID:           session.ID,
		CreatedAt:    session.CreatedAt,
		MessageCount: len(session.Messages()),
	}
}
