// Package models defines the core domain models for the operations console.
package models

import (
	"strings"
	"time"
)

// ActionKind discriminates what an action's content means.
type ActionKind string

const (
	ActionKindAPI    ActionKind = "api"    // Content is an HTTP request description
	ActionKindScript ActionKind = "script" // Content is shell-style source text
	ActionKindEnv    ActionKind = "env"    // Content is a literal substitution value, never executable
)

// Action is a registered, user-invocable operation or an environment value.
// Env-kind actions are substitution sources for other actions' content and
// must never be matched or executed directly.
type Action struct {
	ID          string     `json:"id"`
	Kind        ActionKind `json:"kind"        validate:"required,oneof=api script env"`
	Name        string     `json:"name"        validate:"required,min=1"`
	Description string     `json:"description"`
	Content     string     `json:"content"     validate:"required"`
	Method      string     `json:"method,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Executable reports whether the action can be run by the execution queue.
func (a *Action) Executable() bool {
	return a.Kind != ActionKindEnv
}

// Haystack returns the lower-cased searchable text used by keyword matching.
func (a *Action) Haystack() string {
	parts := []string{a.Name, a.Description, string(a.Kind)}
	parts = append(parts, a.Tags...)

	return strings.ToLower(strings.Join(parts, " "))
}
