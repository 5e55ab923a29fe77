package schedule_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/pkg/audit"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence/file"
	"github.com/opsdeck/opsdeck/pkg/queue"
	"github.com/opsdeck/opsdeck/pkg/registry"
	"github.com/opsdeck/opsdeck/pkg/schedule"
	"github.com/opsdeck/opsdeck/pkg/synthesizer"
	"github.com/opsdeck/opsdeck/pkg/testutil"
)

func setupScheduler(t *testing.T, actions ...*models.Action) (*schedule.Scheduler, *file.Persistence) {
	t.Helper()

	ctx := context.Background()
	persistence := file.NewPersistence(t.TempDir())

	for _, action := range actions {
		require.NoError(t, persistence.ActionRepository().Save(ctx, action))
	}

	logger := slog.Default()

	reg := registry.NewRegistry(logger, persistence.ActionRepository())
	require.NoError(t, reg.Load(ctx))

	sink := audit.NewSink(logger, persistence.RecordRepository(), nil)
	q := queue.New(logger, reg, synthesizer.NewMock(), sink, nil,
		queue.WithLatency(time.Millisecond))

	return schedule.NewScheduler(q, logger), persistence
}

func TestSchedulerBindValidation(t *testing.T) {
	t.Parallel()

	scheduler, _ := setupScheduler(t)

	err := scheduler.Bind(schedule.Binding{
		ActionID: "action-backup",
		CronExpr: "not a cron",
		Enabled:  true,
	})
	require.Error(t, err)

	require.NoError(t, scheduler.Bind(schedule.Binding{
		ActionID: "action-backup",
		CronExpr: "@hourly",
		Enabled:  true,
	}))

	bindings := scheduler.Bindings()
	require.Len(t, bindings, 1)
	assert.Equal(t, "action-backup", bindings[0].ActionID)
}

func TestSchedulerDisabledBindingDoesNotFire(t *testing.T) {
	t.Parallel()

	action := testutil.CreateTestAction(testutil.WithID("action-idle"))
	scheduler, persistence := setupScheduler(t, action)

	require.NoError(t, scheduler.Bind(schedule.Binding{
		ActionID: "action-idle",
		CronExpr: "@every 10ms",
		Enabled:  false,
	}))

	scheduler.Start()
	defer scheduler.Stop()

	time.Sleep(50 * time.Millisecond)

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)

	// Disabled bindings still show up in the listing.
	assert.Len(t, scheduler.Bindings(), 1)
}

func TestSchedulerFiresThroughQueue(t *testing.T) {
	t.Parallel()

	action := testutil.CreateTestAction(
		testutil.WithID("action-cron"),
		testutil.WithName("Nightly Backup"),
	)
	scheduler, persistence := setupScheduler(t, action)

	require.NoError(t, scheduler.Bind(schedule.Binding{
		ActionID: "action-cron",
		CronExpr: "@every 10ms",
		Enabled:  true,
	}))

	scheduler.Start()
	defer scheduler.Stop()

	require.Eventually(t, func() bool {
		records, err := persistence.RecordRepository().List(context.Background())

		return err == nil && len(records) >= 1
	}, 5*time.Second, 10*time.Millisecond)

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, records[0].Status)
	assert.Equal(t, "Nightly Backup", records[0].ActionName)
}

func TestSchedulerUnbind(t *testing.T) {
	t.Parallel()

	scheduler, _ := setupScheduler(t)

	require.NoError(t, scheduler.Bind(schedule.Binding{
		ActionID: "action-a",
		CronExpr: "@hourly",
		Enabled:  true,
	}))

	scheduler.Unbind("action-a")
	assert.Empty(t, scheduler.Bindings())

	// Unbinding an unknown action is a no-op.
	scheduler.Unbind("action-ghost")
}
