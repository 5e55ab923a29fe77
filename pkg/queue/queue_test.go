package queue_test

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdeck/opsdeck/pkg/audit"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence"
	"github.com/opsdeck/opsdeck/pkg/persistence/file"
	"github.com/opsdeck/opsdeck/pkg/queue"
	"github.com/opsdeck/opsdeck/pkg/registry"
	"github.com/opsdeck/opsdeck/pkg/synthesizer"
	"github.com/opsdeck/opsdeck/pkg/testutil"
)

// recordingTranscript captures transcript callbacks and tracks how many
// executions are in flight at once.
type recordingTranscript struct {
	mu        sync.Mutex
	started   []string
	cancelled []string
	completed []string

	active    atomic.Int32
	maxActive atomic.Int32
}

func (r *recordingTranscript) ExecutionStarted(messageID, actionName string) string {
	now := r.active.Add(1)
	for {
		max := r.maxActive.Load()
		if now <= max || r.maxActive.CompareAndSwap(max, now) {
			break
		}
	}

	r.mu.Lock()
	r.started = append(r.started, actionName)
	r.mu.Unlock()

	return messageID
}

func (r *recordingTranscript) ExecutionCancelled(_, actionName string) {
	r.active.Add(-1)

	r.mu.Lock()
	r.cancelled = append(r.cancelled, actionName)
	r.mu.Unlock()
}

func (r *recordingTranscript) ExecutionCompleted(_, outputText string) {
	r.active.Add(-1)

	r.mu.Lock()
	r.completed = append(r.completed, outputText)
	r.mu.Unlock()
}

func (r *recordingTranscript) startedNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.started...)
}

func setupQueue(t *testing.T, transcript queue.Transcript, latency time.Duration, actions ...*models.Action) (*queue.Queue, *file.Persistence) {
	t.Helper()

	ctx := context.Background()
	persistence := file.NewPersistence(t.TempDir())

	for _, action := range actions {
		require.NoError(t, persistence.ActionRepository().Save(ctx, action))
	}

	reg := registry.NewRegistry(slog.Default(), persistence.ActionRepository())
	require.NoError(t, reg.Load(ctx))

	sink := audit.NewSink(slog.Default(), persistence.RecordRepository(), nil)
	q := queue.New(slog.Default(), reg, synthesizer.NewMock(), sink, transcript,
		queue.WithLatency(latency))

	return q, persistence
}

func TestQueueExecutesInFIFOOrder(t *testing.T) {
	t.Parallel()

	first := testutil.CreateTestAction(testutil.WithID("action-first"), testutil.WithName("First"))
	second := testutil.CreateTestAction(testutil.WithID("action-second"), testutil.WithName("Second"))
	third := testutil.CreateTestAction(testutil.WithID("action-third"), testutil.WithName("Third"))

	transcript := &recordingTranscript{}
	q, persistence := setupQueue(t, transcript, 5*time.Millisecond, first, second, third)

	q.Enqueue("action-first", "m1")
	q.Enqueue("action-second", "m2")
	q.Enqueue("action-third", "m3")
	q.Wait()

	assert.Equal(t, []string{"First", "Second", "Third"}, transcript.startedNames())

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 3)

	for _, record := range records {
		assert.Equal(t, models.ExecutionStatusSuccess, record.Status)
	}
}

func TestQueueSingleFlight(t *testing.T) {
	t.Parallel()

	action := testutil.CreateTestAction(testutil.WithID("action-sf"))
	transcript := &recordingTranscript{}
	q, _ := setupQueue(t, transcript, 10*time.Millisecond, action)

	for range 5 {
		q.Enqueue("action-sf", "")
	}

	q.Wait()

	assert.Equal(t, int32(1), transcript.maxActive.Load())
	assert.Len(t, transcript.startedNames(), 5)
}

func TestQueueOneRecordPerAttempt(t *testing.T) {
	t.Parallel()

	action := testutil.CreateTestAction(testutil.WithID("action-dup"))
	q, persistence := setupQueue(t, &recordingTranscript{}, time.Millisecond, action)

	q.Enqueue("action-dup", "")
	q.Enqueue("action-dup", "")
	q.Wait()

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestQueueCancelAbortsOnlyInFlightEntry(t *testing.T) {
	t.Parallel()

	slow := testutil.CreateTestAction(testutil.WithID("action-slow"), testutil.WithName("Slow"))
	next := testutil.CreateTestAction(testutil.WithID("action-next"), testutil.WithName("Next"))

	transcript := &recordingTranscript{}
	q, persistence := setupQueue(t, transcript, 200*time.Millisecond, slow, next)

	q.Enqueue("action-slow", "m1")
	q.Enqueue("action-next", "m2")

	require.Eventually(t, func() bool {
		return len(transcript.startedNames()) == 1
	}, time.Second, time.Millisecond)

	q.Cancel()
	q.Wait()

	assert.Equal(t, []string{"Slow"}, transcript.cancelled)
	assert.Len(t, transcript.completed, 1)

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	byID := make(map[string]*models.ExecutionRecord)
	for _, record := range records {
		byID[record.ActionID] = record
	}

	require.Contains(t, byID, "action-slow")
	assert.Equal(t, models.ExecutionStatusCancelled, byID["action-slow"].Status)
	assert.Equal(t, models.CancelledReturnCode, byID["action-slow"].ReturnCode)
	assert.Equal(t, "cancelled by user", byID["action-slow"].Summary)

	require.Contains(t, byID, "action-next")
	assert.Equal(t, models.ExecutionStatusSuccess, byID["action-next"].Status)
}

// gatedRecordRepository blocks Append until released and refuses writes
// whose context was cancelled while it was blocked, like a store that
// honors its context would.
type gatedRecordRepository struct {
	inner   persistence.RecordRepository
	entered chan struct{}
	release chan struct{}
}

func (g *gatedRecordRepository) Append(ctx context.Context, record *models.ExecutionRecord) error {
	g.entered <- struct{}{}
	<-g.release

	if err := ctx.Err(); err != nil {
		return err
	}

	return g.inner.Append(ctx, record)
}

func (g *gatedRecordRepository) List(ctx context.Context) ([]*models.ExecutionRecord, error) {
	return g.inner.List(ctx)
}

func TestQueueCancelAfterWaitHasNoEffect(t *testing.T) {
	t.Parallel()

	action := testutil.CreateTestAction(testutil.WithID("action-late"), testutil.WithName("Late"))

	ctx := context.Background()
	p := file.NewPersistence(t.TempDir())
	require.NoError(t, p.ActionRepository().Save(ctx, action))

	reg := registry.NewRegistry(slog.Default(), p.ActionRepository())
	require.NoError(t, reg.Load(ctx))

	repo := &gatedRecordRepository{
		inner:   p.RecordRepository(),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	transcript := &recordingTranscript{}
	q := queue.New(slog.Default(), reg, synthesizer.NewMock(),
		audit.NewSink(slog.Default(), repo, nil), transcript,
		queue.WithLatency(time.Millisecond))

	q.Enqueue("action-late", "m1")

	// Once Append has been entered, the entry is past its latency wait and
	// past its cancellation window.
	<-repo.entered
	q.Cancel()
	close(repo.release)
	q.Wait()

	records, err := p.RecordRepository().List(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.ExecutionStatusSuccess, records[0].Status)
	assert.Equal(t, "action-late", records[0].ActionID)

	assert.Empty(t, transcript.cancelled)
	assert.Len(t, transcript.completed, 1)
}

func TestQueueCancelWhenIdleIsNoop(t *testing.T) {
	t.Parallel()

	q, persistence := setupQueue(t, &recordingTranscript{}, time.Millisecond)

	q.Cancel()

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueueMissingActionRecordsFailure(t *testing.T) {
	t.Parallel()

	transcript := &recordingTranscript{}
	q, persistence := setupQueue(t, transcript, time.Millisecond)

	q.Enqueue("action-ghost", "")
	q.Wait()

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	assert.Equal(t, models.ExecutionStatusFailure, records[0].Status)
	assert.Equal(t, 127, records[0].ReturnCode)
	assert.Equal(t, "action-ghost", records[0].ActionID)

	// No transcript traffic for an entry that never started.
	assert.Empty(t, transcript.startedNames())
}

func TestQueueSubstitutesEnvValues(t *testing.T) {
	t.Parallel()

	env := testutil.CreateTestAction(testutil.WithEnvKind("HOST", "db.internal"))
	action := testutil.CreateTestAction(
		testutil.WithID("action-ping"),
		testutil.WithContent("ping ${HOST}"),
	)

	q, persistence := setupQueue(t, &recordingTranscript{}, time.Millisecond, env, action)

	q.Enqueue("action-ping", "")
	q.Wait()

	records, err := persistence.RecordRepository().List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "ping db.internal", records[0].RequestSnapshot)
}

func TestQueueAppendsCurlForAPIActions(t *testing.T) {
	t.Parallel()

	action := testutil.CreateTestAction(
		testutil.WithID("action-api"),
		testutil.WithAPIKind(`{"method":"POST","url":"https://api.internal/deploy","body":{"env":"prod"}}`),
	)

	transcript := &recordingTranscript{}
	q, _ := setupQueue(t, transcript, time.Millisecond, action)

	q.Enqueue("action-api", "")
	q.Wait()

	require.Len(t, transcript.completed, 1)
	assert.Contains(t, transcript.completed[0], "curl -X POST")
	assert.Contains(t, transcript.completed[0], "https://api.internal/deploy")
}
