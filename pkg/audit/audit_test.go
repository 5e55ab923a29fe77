package audit_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/pkg/audit"
	"github.com/opsdeck/opsdeck/pkg/channels/gochannel"
	"github.com/opsdeck/opsdeck/pkg/eventbus"
	"github.com/opsdeck/opsdeck/pkg/events"
	"github.com/opsdeck/opsdeck/pkg/mocks"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence/file"
)

func testRecord(actionID string) *models.ExecutionRecord {
	return &models.ExecutionRecord{
		ActionID:   actionID,
		ActionName: "Database Backup",
		ActionKind: models.ActionKindScript,
		StartedAt:  time.Now().UTC(),
		DurationMs: 42,
		Status:     models.ExecutionStatusSuccess,
		Summary:    "exit 0 in 42ms",
	}
}

func TestSinkAppendAssignsIDAndStores(t *testing.T) {
	t.Parallel()

	repo := file.NewRecordRepository(t.TempDir())
	sink := audit.NewSink(slog.Default(), repo, nil)

	record := testRecord("action-backup")
	sink.Append(context.Background(), record)

	assert.NotEmpty(t, record.ID)

	stored, err := sink.List(context.Background())
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, record.ID, stored[0].ID)
	assert.Equal(t, "action-backup", stored[0].ActionID)
}

func TestSinkAppendToleratesStorageFailure(t *testing.T) {
	t.Parallel()

	repo := &mocks.MockRecordRepository{}
	repo.On("Append", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	sink := audit.NewSink(slog.Default(), repo, nil)

	// Storage failure is logged, never panics or propagates.
	sink.Append(context.Background(), testRecord("action-backup"))

	repo.AssertNumberOfCalls(t, "Append", 1)
}

func TestSinkAppendPublishesEvent(t *testing.T) {
	t.Parallel()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)

	received := make(chan *events.ExecutionRecorded, 1)
	require.NoError(t, bus.Handle(events.ExecutionRecordedEvent, func(_ context.Context, event any) error {
		recorded, ok := event.(*events.ExecutionRecorded)
		require.True(t, ok)

		received <- recorded

		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	sink := audit.NewSink(slog.Default(), file.NewRecordRepository(t.TempDir()), bus)
	sink.Append(ctx, testRecord("action-backup"))

	select {
	case recorded := <-received:
		assert.Equal(t, "action-backup", recorded.Record.ActionID)
		assert.Equal(t, models.ExecutionStatusSuccess, recorded.Record.Status)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for execution recorded event")
	}
}
