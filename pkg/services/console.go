package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/opsdeck/opsdeck/pkg/audit"
	"github.com/opsdeck/opsdeck/pkg/conversation"
	"github.com/opsdeck/opsdeck/pkg/eventbus"
	"github.com/opsdeck/opsdeck/pkg/events"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence"
	"github.com/opsdeck/opsdeck/pkg/queue"
	"github.com/opsdeck/opsdeck/pkg/registry"
	"github.com/opsdeck/opsdeck/pkg/resolver"
	"github.com/opsdeck/opsdeck/pkg/synthesizer"
)

// Console is the chat-facing service: it owns the sessions, consults the
// intent resolver, and drives the per-session execution queues.
type Console struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	registry    *registry.Registry
	resolver    *resolver.Resolver
	synth       synthesizer.Synthesizer
	sink        *audit.Sink
	publisher   eventbus.EventPublisher
	sessions    *conversation.Manager
	locale      string
	queueOpts   []queue.Option

	mu     sync.Mutex
	queues map[string]*queue.Queue
}

// NewConsole creates the console service. The publisher may be nil; the
// queueOpts are applied to every per-session queue.
func NewConsole(
	logger *slog.Logger,
	p persistence.Persistence,
	reg *registry.Registry,
	res *resolver.Resolver,
	synth synthesizer.Synthesizer,
	sink *audit.Sink,
	publisher eventbus.EventPublisher,
	locale string,
	queueOpts ...queue.Option,
) *Console {
	if locale == "" {
		locale = "en"
	}

	return &Console{
		logger:      logger.With("module", "console"),
		persistence: p,
		registry:    reg,
		resolver:    res,
		synth:       synth,
		sink:        sink,
		publisher:   publisher,
		sessions:    conversation.NewManager(),
		locale:      locale,
		queueOpts:   queueOpts,
		queues:      make(map[string]*queue.Queue),
	}
}

// HealthCheck checks the health of the persistence layer.
func (c *Console) HealthCheck(ctx context.Context) (string, bool) {
	if c.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := c.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// CreateSession opens a new, empty conversation.
func (c *Console) CreateSession() *conversation.Session {
	session := c.sessions.Create()

	c.logger.Info("Created session", "session_id", session.ID)

	return session
}

// ListSessions returns all open sessions in creation order.
func (c *Console) ListSessions() []*conversation.Session {
	return c.sessions.List()
}

// Messages returns the transcript of one session.
func (c *Console) Messages(sessionID string) ([]*models.ChatMessage, error) {
	session, err := c.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}

	return session.Messages(), nil
}

// HandleMessage appends the user's text to the session, resolves it
// against the executable catalog, and appends the resulting assistant
// message. Resolution never fails; the fallback path answers when the
// remote classifier cannot.
func (c *Console) HandleMessage(ctx context.Context, sessionID, text, locale string) (models.ChatMessage, error) {
	session, err := c.sessions.Get(sessionID)
	if err != nil {
		return models.ChatMessage{}, err
	}

	if strings.TrimSpace(text) == "" {
		return models.ChatMessage{}, NewValidationError(
			"HandleMessage", "EMPTY_MESSAGE", "message text cannot be empty", ErrEmptyMessage)
	}

	if locale == "" {
		locale = c.locale
	}

	session.AppendUser(text)

	result := c.resolver.Resolve(ctx, text, c.registry.List(), locale)
	reply := session.AppendIntentReply(result)

	c.publishIntentResolved(ctx, session.ID, text, result)

	return reply, nil
}

// Enqueue submits one execution attempt for the session. The action must
// exist and be executable at enqueue time; the queue re-checks existence
// at execution time since the catalog can change while entries wait.
func (c *Console) Enqueue(sessionID, actionID, messageID string) error {
	session, err := c.sessions.Get(sessionID)
	if err != nil {
		return err
	}

	action, ok := c.registry.Get(actionID)
	if !ok {
		return fmt.Errorf("enqueue %s: %w", actionID, ErrActionNotFound)
	}

	if !action.Executable() {
		return NewValidationError(
			"Enqueue", "NOT_EXECUTABLE",
			fmt.Sprintf("action '%s' is an env value and cannot be executed", action.Name),
			ErrActionNotExecutable)
	}

	c.queueFor(session).Enqueue(actionID, messageID)

	c.logger.Info("Enqueued execution", "session_id", sessionID, "action_id", actionID)

	return nil
}

// CancelExecution aborts the session's in-flight entry, if any. Cancelling
// an idle session is a no-op.
func (c *Console) CancelExecution(sessionID string) error {
	if _, err := c.sessions.Get(sessionID); err != nil {
		return err
	}

	c.mu.Lock()
	q := c.queues[sessionID]
	c.mu.Unlock()

	if q != nil {
		q.Cancel()
	}

	return nil
}

// Records returns the full audit trail.
func (c *Console) Records(ctx context.Context) ([]*models.ExecutionRecord, error) {
	records, err := c.sink.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list execution records: %w", err)
	}

	return records, nil
}

// queueFor returns the session's execution queue, creating it on first
// use. Each session gets its own serial queue; the session itself is the
// queue's transcript.
func (c *Console) queueFor(session *conversation.Session) *queue.Queue {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.queues[session.ID]
	if !ok {
		opts := append([]queue.Option{queue.WithPublisher(c.publisher)}, c.queueOpts...)
		q = queue.New(c.logger, c.registry, c.synth, c.sink, session, opts...)
		c.queues[session.ID] = q
	}

	return q
}

func (c *Console) publishIntentResolved(ctx context.Context, sessionID, query string, result models.IntentResult) {
	if c.publisher == nil {
		return
	}

	event := events.IntentResolved{
		BaseEvent:  events.NewBaseEvent(events.IntentResolvedEvent, sessionID),
		Query:      query,
		Matched:    result.Matched(),
		MatchedID:  result.MatchedActionID,
		Suggested:  len(result.SuggestedActionIDs),
		Confidence: result.Confidence,
		Fallback:   result.Fallback,
	}

	err := c.publisher.Publish(ctx, sessionID, event)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to publish intent resolved event", "error", err)
	}
}
