package conversation

import (
	"errors"
	"sort"
	"sync"
)

// ErrSessionNotFound indicates a session was not found by the given identifier.
var ErrSessionNotFound = errors.New("session not found")

// Manager tracks the live sessions of one console process.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Create registers a new empty session.
func (m *Manager) Create() *Session {
	session := NewSession()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session

	return session
}

// Get returns the session with the given id or ErrSessionNotFound.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// List returns all sessions ordered by creation time, oldest first.
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}

	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].ID < sessions[j].ID
		}

		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	return sessions
}
