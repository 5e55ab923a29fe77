// Package queue serializes action executions into a strictly serial,
// single-flight pipeline with cooperative cancellation.
package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opsdeck/opsdeck/pkg/audit"
	"github.com/opsdeck/opsdeck/pkg/eventbus"
	"github.com/opsdeck/opsdeck/pkg/events"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/otelhelper"
	"github.com/opsdeck/opsdeck/pkg/persistence"
	"github.com/opsdeck/opsdeck/pkg/registry"
	"github.com/opsdeck/opsdeck/pkg/synthesizer"
	"github.com/opsdeck/opsdeck/pkg/template"
)

// DefaultLatency is the fixed simulated remote-call latency per entry.
const DefaultLatency = 1500 * time.Millisecond

// missingActionReturnCode is used when an enqueued action id no longer
// exists in the registry at execution time. 127 follows the shell's
// command-not-found convention.
const missingActionReturnCode = 127

// Transcript receives conversation-side effects of queue processing. The
// queue never blocks on it.
type Transcript interface {
	// ExecutionStarted marks the message as executing, or appends a new
	// executing message when messageID is unknown or empty. It returns the
	// id of the message that carries the executing state.
	ExecutionStarted(messageID, actionName string) string
	// ExecutionCancelled rewrites the executing message in place.
	ExecutionCancelled(messageID, actionName string)
	// ExecutionCompleted clears the executing state and appends the output.
	ExecutionCompleted(messageID, outputText string)
}

// NoopTranscript discards all transcript updates. Used for executions that
// have no conversation attached, such as scheduled runs.
type NoopTranscript struct{}

func (NoopTranscript) ExecutionStarted(messageID, _ string) string { return messageID }
func (NoopTranscript) ExecutionCancelled(string, string)           {}
func (NoopTranscript) ExecutionCompleted(string, string)           {}

type entry struct {
	actionID  string
	messageID string
}

// Queue executes enqueued actions one at a time in FIFO order. At most one
// entry is in flight at any instant; entries enqueued while another is
// executing wait in the pending list.
type Queue struct {
	registry   *registry.Registry
	synth      synthesizer.Synthesizer
	sink       *audit.Sink
	transcript Transcript
	publisher  eventbus.EventPublisher
	latency    time.Duration
	logger     *slog.Logger
	tracer     trace.Tracer

	mu             sync.Mutex
	pending        []entry
	running        bool
	cancelInFlight context.CancelFunc

	wg sync.WaitGroup
}

// Option configures a Queue.
type Option func(*Queue)

// WithLatency overrides the simulated execution latency.
func WithLatency(d time.Duration) Option {
	return func(q *Queue) { q.latency = d }
}

// WithPublisher wires lifecycle events onto the event bus.
func WithPublisher(p eventbus.EventPublisher) Option {
	return func(q *Queue) { q.publisher = p }
}

// New creates an execution queue. A nil transcript is replaced with
// NoopTranscript.
func New(logger *slog.Logger, reg *registry.Registry, synth synthesizer.Synthesizer, sink *audit.Sink, transcript Transcript, opts ...Option) *Queue {
	if transcript == nil {
		transcript = NoopTranscript{}
	}

	q := &Queue{
		registry:   reg,
		synth:      synth,
		sink:       sink,
		transcript: transcript,
		latency:    DefaultLatency,
		logger:     logger.With("module", "execution_queue"),
		tracer:     otel.Tracer("opsdeck/queue"),
	}

	for _, opt := range opts {
		opt(q)
	}

	return q
}

// Enqueue appends an execution attempt to the tail of the pending list and
// starts the drain loop if it is idle. Duplicate action ids are allowed;
// each enqueue is an independent attempt. The running guard is taken
// synchronously here, before any goroutine is spawned, so two racing
// enqueues can never start two drain loops.
func (q *Queue) Enqueue(actionID, messageID string) {
	q.mu.Lock()

	q.pending = append(q.pending, entry{actionID: actionID, messageID: messageID})

	start := !q.running
	if start {
		q.running = true

		q.wg.Add(1)
	}

	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// Cancel aborts the entry currently in flight, if any. Pending entries are
// unaffected; they can be cancelled once they start. Cancellation is
// observed only during the simulated-latency wait.
func (q *Queue) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancelInFlight != nil {
		q.cancelInFlight()
	}
}

// Pending returns the number of entries waiting or in flight.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

// Wait blocks until the queue has drained. Intended for tests and
// shutdown.
func (q *Queue) Wait() {
	q.wg.Wait()
}

func (q *Queue) drain() {
	defer q.wg.Done()

	for {
		q.mu.Lock()

		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()

			return
		}

		next := q.pending[0]

		ctx, cancel := context.WithCancel(context.Background())
		q.cancelInFlight = cancel

		q.mu.Unlock()

		q.execute(ctx, next)

		q.mu.Lock()
		q.cancelInFlight = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		cancel()
	}
}

// execute runs one entry through substitution, the cancellable wait, the
// synthesizer, the audit sink, and the transcript. It never panics the
// drain loop.
func (q *Queue) execute(ctx context.Context, e entry) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Recovered from panic during execution",
				"action_id", e.actionID, "panic", fmt.Sprintf("%v", r))
		}
	}()

	ctx, span := otelhelper.StartSpan(ctx, q.tracer, "queue.execute",
		attribute.String(otelhelper.ActionIDKey, e.actionID),
	)
	defer span.End()

	action, ok := q.registry.Get(e.actionID)
	if !ok {
		q.logger.Warn("Enqueued action no longer exists", "action_id", e.actionID)
		otelhelper.SetError(span, persistence.ErrActionNotFound)

		q.sink.Append(context.WithoutCancel(ctx), &models.ExecutionRecord{
			ActionID:   e.actionID,
			StartedAt:  time.Now().UTC(),
			Status:     models.ExecutionStatusFailure,
			ReturnCode: missingActionReturnCode,
			Summary:    "action no longer exists in the registry",
		})

		return
	}

	msgID := q.transcript.ExecutionStarted(e.messageID, action.Name)
	substituted := template.ExpandEnv(action.Content, q.registry.Environment())
	startedAt := time.Now().UTC()

	q.publishStarted(ctx, action)

	select {
	case <-time.After(q.latency):
	case <-ctx.Done():
		q.logger.Info("Execution cancelled", "action_id", action.ID, "action_name", action.Name)

		q.sink.Append(context.WithoutCancel(ctx), &models.ExecutionRecord{
			ActionID:        action.ID,
			ActionName:      action.Name,
			ActionKind:      action.Kind,
			StartedAt:       startedAt,
			DurationMs:      time.Since(startedAt).Milliseconds(),
			Status:          models.ExecutionStatusCancelled,
			ReturnCode:      models.CancelledReturnCode,
			Summary:         "cancelled by user",
			RequestSnapshot: substituted,
		})

		q.transcript.ExecutionCancelled(msgID, action.Name)

		return
	}

	result := q.synth.Synthesize(action, substituted)

	output := result.OutputText

	if action.Kind == models.ActionKindAPI {
		if curl, ok := synthesizer.CurlCommand(substituted, action.Method); ok {
			output += "\n\n$ " + curl
		}
	}

	// The entry is past its cancellation window once the wait completes; a
	// late Cancel must not be able to fail this write.
	q.sink.Append(context.WithoutCancel(ctx), &models.ExecutionRecord{
		ActionID:         action.ID,
		ActionName:       action.Name,
		ActionKind:       action.Kind,
		StartedAt:        startedAt,
		DurationMs:       result.DurationMs,
		Status:           result.Status,
		ReturnCode:       result.ReturnCode,
		Summary:          result.Summary,
		RequestSnapshot:  substituted,
		ResponseSnapshot: result.OutputText,
	})

	q.transcript.ExecutionCompleted(msgID, output)
}

func (q *Queue) publishStarted(ctx context.Context, action *models.Action) {
	if q.publisher == nil {
		return
	}

	event := events.ExecutionStarted{
		BaseEvent:  events.NewBaseEvent(events.ExecutionStartedEvent, ""),
		ActionID:   action.ID,
		ActionName: action.Name,
	}

	err := q.publisher.Publish(ctx, action.ID, event)
	if err != nil {
		q.logger.WarnContext(ctx, "Failed to publish execution started event", "error", err)
	}
}
