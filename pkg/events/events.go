// Package events defines event types for execution lifecycle notifications.
package events

import (
	"time"

	"github.com/opsdeck/opsdeck/pkg/models"
)

type EventType string

const Topic = "opsdeck.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ExecutionStartedEvent     EventType = "execution.started"
	ExecutionRecordedEvent    EventType = "execution.recorded"
	IntentResolvedEvent       EventType = "intent.resolved"
	ActionCatalogChangedEvent EventType = "catalog.changed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent stamps a base event with its type and the current time.
func NewBaseEvent(eventType EventType, sessionID string) BaseEvent {
	return BaseEvent{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		SessionID: sessionID,
	}
}

// ExecutionStarted signals that the queue moved an entry into flight.
type ExecutionStarted struct {
	BaseEvent

	ActionID   string `json:"action_id"`
	ActionName string `json:"action_name"`
}

func (e ExecutionStarted) GetType() EventType {
	return ExecutionStartedEvent
}

// ExecutionRecorded carries the audit record emitted for one attempt.
type ExecutionRecorded struct {
	BaseEvent

	Record models.ExecutionRecord `json:"record"`
}

func (e ExecutionRecorded) GetType() EventType {
	return ExecutionRecordedEvent
}

// IntentResolved reports the outcome of one intent resolution, including
// whether the local fallback produced it.
type IntentResolved struct {
	BaseEvent

	Query      string  `json:"query"`
	Matched    bool    `json:"matched"`
	MatchedID  string  `json:"matched_id,omitempty"`
	Suggested  int     `json:"suggested"`
	Confidence float64 `json:"confidence"`
	Fallback   bool    `json:"fallback"`
}

func (e IntentResolved) GetType() EventType {
	return IntentResolvedEvent
}

// ActionCatalogChanged signals a create, update, or delete in the catalog.
type ActionCatalogChanged struct {
	BaseEvent

	ActionID string `json:"action_id"`
	Change   string `json:"change"`
}

func (e ActionCatalogChanged) GetType() EventType {
	return ActionCatalogChangedEvent
}
