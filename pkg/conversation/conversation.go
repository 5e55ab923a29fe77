// Package conversation owns the ordered chat transcript for one console
// session.
package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// Session is the explicit owner of one conversation's message history.
// Messages are append-only; the only in-place mutations are the execution
// state transitions and the cancellation rewrite.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	mu       sync.Mutex
	messages []*models.ChatMessage
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{
		ID:        "session-" + uuid.New().String()[:8],
		CreatedAt: time.Now().UTC(),
		messages:  make([]*models.ChatMessage, 0),
	}
}

// Messages returns a snapshot of the transcript in append order.
func (s *Session) Messages() []*models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*models.ChatMessage, 0, len(s.messages))

	for _, msg := range s.messages {
		copied := *msg
		snapshot = append(snapshot, &copied)
	}

	return snapshot
}

// AppendUser appends a user message and returns a copy of it.
func (s *Session) AppendUser(text string) models.ChatMessage {
	return s.append(&models.ChatMessage{
		Role: models.RoleUser,
		Text: text,
	})
}

// AppendIntentReply folds an intent resolution result into an assistant
// message.
func (s *Session) AppendIntentReply(result models.IntentResult) models.ChatMessage {
	return s.append(&models.ChatMessage{
		Role:               models.RoleAssistant,
		Text:               result.Reply,
		MatchedActionID:    result.MatchedActionID,
		SuggestedActionIDs: result.SuggestedActionIDs,
	})
}

// AppendError appends an inline assistant error bubble. The conversation
// stays usable afterwards.
func (s *Session) AppendError(text string) models.ChatMessage {
	return s.append(&models.ChatMessage{
		Role:    models.RoleAssistant,
		Text:    text,
		IsError: true,
	})
}

func (s *Session) append(msg *models.ChatMessage) models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg.ID = "msg-" + uuid.New().String()[:8]
	msg.CreatedAt = time.Now().UTC()

	if msg.ExecutionState == "" {
		msg.ExecutionState = models.ExecutionStateNone
	}

	s.messages = append(s.messages, msg)

	return *msg
}

// ExecutionStarted transitions the message with the given id into the
// executing state. When no such message exists (scheduled or API-triggered
// runs) a new assistant message is appended instead. The id of the message
// that now carries the executing state is returned.
func (s *Session) ExecutionStarted(messageID, actionName string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	text := fmt.Sprintf("Executing: %s...", actionName)

	if msg := s.findLocked(messageID); msg != nil {
		msg.Text = text
		msg.ExecutionState = models.ExecutionStateExecuting

		return msg.ID
	}

	msg := &models.ChatMessage{
		ID:             "msg-" + uuid.New().String()[:8],
		Role:           models.RoleAssistant,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
		ExecutionState: models.ExecutionStateExecuting,
	}
	s.messages = append(s.messages, msg)

	return msg.ID
}

// ExecutionCancelled rewrites the executing message in place to its
// cancelled form.
func (s *Session) ExecutionCancelled(messageID, actionName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg := s.findLocked(messageID); msg != nil {
		msg.Text = fmt.Sprintf("Cancelled: %s", actionName)
		msg.ExecutionState = models.ExecutionStateCancelled
	}
}

// ExecutionCompleted clears the executing state and appends a new
// assistant message carrying the synthesized output.
func (s *Session) ExecutionCompleted(messageID, outputText string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if msg := s.findLocked(messageID); msg != nil {
		msg.ExecutionState = models.ExecutionStateNone
	}

	out := &models.ChatMessage{
		ID:             "msg-" + uuid.New().String()[:8],
		Role:           models.RoleAssistant,
		Text:           outputText,
		CreatedAt:      time.Now().UTC(),
		ExecutionState: models.ExecutionStateNone,
	}
	s.messages = append(s.messages, out)
}

func (s *Session) findLocked(messageID string) *models.ChatMessage {
	if messageID == "" {
		return nil
	}

	for _, msg := range s.messages {
		if msg.ID == messageID {
			return msg
		}
	}

	return nil
}
