// Package registry holds the in-memory catalog of registered actions.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence"
)

// Registry is the action catalog consulted by the resolver and the
// execution queue. Reads return consistent snapshots in registration
// order; writes go through the backing repository first.
type Registry struct {
	logger *slog.Logger
	repo   persistence.ActionRepository

	mu      sync.RWMutex
	ordered []*models.Action
	byID    map[string]*models.Action
}

// NewRegistry creates a registry backed by the given repository.
func NewRegistry(logger *slog.Logger, repo persistence.ActionRepository) *Registry {
	return &Registry{
		logger:  logger.With("module", "registry"),
		repo:    repo,
		ordered: make([]*models.Action, 0),
		byID:    make(map[string]*models.Action),
	}
}

// Load hydrates the catalog from the backing repository.
func (r *Registry) Load(ctx context.Context) error {
	actions, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to load actions: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.ordered = actions
	r.byID = make(map[string]*models.Action, len(actions))

	for _, action := range actions {
		r.byID[action.ID] = action
	}

	r.logger.InfoContext(ctx, "Loaded action catalog", "count", len(actions))

	return nil
}

// List returns a snapshot of every registered action in registration order.
func (r *Registry) List() []*models.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot(func(*models.Action) bool { return true })
}

// Executable returns a snapshot of every non-env action in registration order.
func (r *Registry) Executable() []*models.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot(func(a *models.Action) bool { return a.Executable() })
}

// Environment returns a snapshot of every env-kind action in registration order.
func (r *Registry) Environment() []*models.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.snapshot(func(a *models.Action) bool { return a.Kind == models.ActionKindEnv })
}

func (r *Registry) snapshot(keep func(*models.Action) bool) []*models.Action {
	actions := make([]*models.Action, 0, len(r.ordered))

	for _, action := range r.ordered {
		if keep(action) {
			copied := *action
			actions = append(actions, &copied)
		}
	}

	return actions
}

// Get returns the action with the given id.
func (r *Registry) Get(id string) (*models.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	action, ok := r.byID[id]
	if !ok {
		return nil, false
	}

	copied := *action

	return &copied, true
}

// Add registers a new action, assigning an id when absent.
func (r *Registry) Add(ctx context.Context, action *models.Action) (*models.Action, error) {
	if action.ID == "" {
		action.ID = "action-" + uuid.New().String()[:8]
	}

	now := time.Now().UTC()
	action.CreatedAt = now
	action.UpdatedAt = now

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[action.ID]; exists {
		return nil, fmt.Errorf("action %s: %w", action.ID, persistence.ErrActionAlreadyExists)
	}

	err := r.repo.Save(ctx, action)
	if err != nil {
		return nil, err
	}

	copied := *action
	r.ordered = append(r.ordered, &copied)
	r.byID[copied.ID] = &copied

	return action, nil
}

// Update replaces an existing action, preserving its creation time and
// position in registration order.
func (r *Registry) Update(ctx context.Context, action *models.Action) (*models.Action, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.byID[action.ID]
	if !ok {
		return nil, fmt.Errorf("action %s: %w", action.ID, persistence.ErrActionNotFound)
	}

	action.CreatedAt = existing.CreatedAt
	action.UpdatedAt = time.Now().UTC()

	err := r.repo.Save(ctx, action)
	if err != nil {
		return nil, err
	}

	copied := *action
	*existing = copied

	return action, nil
}

// Remove deletes an action from the catalog and the backing repository.
func (r *Registry) Remove(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return fmt.Errorf("action %s: %w", id, persistence.ErrActionNotFound)
	}

	err := r.repo.Delete(ctx, id)
	if err != nil {
		return err
	}

	delete(r.byID, id)

	for i, action := range r.ordered {
		if action.ID == id {
			r.ordered = append(r.ordered[:i], r.ordered[i+1:]...)

			break
		}
	}

	return nil
}
