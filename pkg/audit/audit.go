// Package audit collects the append-only execution trail.
package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/pkg/eventbus"
	"github.com/opsdeck/opsdeck/pkg/events"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence"
)

// Sink appends execution records and publishes one event per record. It is
// fire-and-forget from the queue's perspective: storage or publish
// failures are logged and never propagate back to the execution path.
type Sink struct {
	repo      persistence.RecordRepository
	publisher eventbus.EventPublisher
	logger    *slog.Logger
}

// NewSink creates an audit sink. The publisher may be nil when no event
// bus is wired, for example in tests.
func NewSink(logger *slog.Logger, repo persistence.RecordRepository, publisher eventbus.EventPublisher) *Sink {
	return &Sink{
		repo:      repo,
		publisher: publisher,
		logger:    logger.With("module", "audit"),
	}
}

// Append stores the record, assigning an id when absent, and notifies the
// event bus.
func (s *Sink) Append(ctx context.Context, record *models.ExecutionRecord) {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}

	err := s.repo.Append(ctx, record)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to store execution record",
			"record_id", record.ID, "action_id", record.ActionID, "error", err)
	}

	if s.publisher == nil {
		return
	}

	event := events.ExecutionRecorded{
		BaseEvent: events.NewBaseEvent(events.ExecutionRecordedEvent, ""),
		Record:    *record,
	}
	event.ID = record.ID

	err = s.publisher.Publish(ctx, record.ActionID, event)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish execution record",
			"record_id", record.ID, "error", err)
	}
}

// List returns the stored trail in emission order.
func (s *Sink) List(ctx context.Context) ([]*models.ExecutionRecord, error) {
	return s.repo.List(ctx)
}
