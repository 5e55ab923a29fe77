// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// CreateTestAction creates a test Action with default values that can be overridden.
func CreateTestAction(overrides ...func(*models.Action)) *models.Action {
	action := &models.Action{
		ID:          "action-" + uuid.New().String()[:8],
		Kind:        models.ActionKindScript,
		Name:        "Test Action",
		Description: "A test action",
		Content:     "echo hello",
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}

	for _, override := range overrides {
		override(action)
	}

	return action
}

// WithID sets the action id.
func WithID(id string) func(*models.Action) {
	return func(a *models.Action) {
		a.ID = id
	}
}

// WithName sets the action name.
func WithName(name string) func(*models.Action) {
	return func(a *models.Action) {
		a.Name = name
	}
}

// WithDescription sets the action description.
func WithDescription(description string) func(*models.Action) {
	return func(a *models.Action) {
		a.Description = description
	}
}

// WithContent sets the action content.
func WithContent(content string) func(*models.Action) {
	return func(a *models.Action) {
		a.Content = content
	}
}

// WithTags sets the action tags.
func WithTags(tags ...string) func(*models.Action) {
	return func(a *models.Action) {
		a.Tags = tags
	}
}

// WithAPIKind configures the action as an api request.
func WithAPIKind(content string) func(*models.Action) {
	return func(a *models.Action) {
		a.Kind = models.ActionKindAPI
		a.Content = content
		a.Method = "GET"
	}
}

// WithEnvKind configures the action as an env substitution value.
func WithEnvKind(name, value string) func(*models.Action) {
	return func(a *models.Action) {
		a.Kind = models.ActionKindEnv
		a.Name = name
		a.Content = value
	}
}
