package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence"
)

const dirPerm = 0o755

// ActionRepository stores actions as one JSON file per action.
type ActionRepository struct {
	root string
	mu   sync.RWMutex
}

// NewActionRepository creates a new action repository rooted at root/actions.
func NewActionRepository(root string) *ActionRepository {
	return &ActionRepository{root: root}
}

func (ar *ActionRepository) dir() string {
	return filepath.Join(ar.root, "actions")
}

func (ar *ActionRepository) path(id string) string {
	return filepath.Join(ar.dir(), id+".json")
}

// List returns all stored actions ordered by creation time, oldest first.
func (ar *ActionRepository) List(ctx context.Context) ([]*models.Action, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	root := os.DirFS(ar.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list action files: %w", err)
	}

	actions := make([]*models.Action, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		action, err := ar.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		actions = append(actions, action)
	}

	sort.Slice(actions, func(i, j int) bool {
		if actions[i].CreatedAt.Equal(actions[j].CreatedAt) {
			return actions[i].ID < actions[j].ID
		}

		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})

	return actions, nil
}

// GetByID returns the action with the given id or ErrActionNotFound.
func (ar *ActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	ar.mu.RLock()
	defer ar.mu.RUnlock()

	return ar.read(id)
}

func (ar *ActionRepository) read(id string) (*models.Action, error) {
	data, err := os.ReadFile(ar.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("action %s: %w", id, persistence.ErrActionNotFound)
		}

		return nil, fmt.Errorf("failed to read action %s: %w", id, err)
	}

	var action models.Action

	err = json.Unmarshal(data, &action)
	if err != nil {
		return nil, fmt.Errorf("failed to parse action %s: %w", id, err)
	}

	return &action, nil
}

// Save writes the action, creating or replacing its file.
func (ar *ActionRepository) Save(ctx context.Context, action *models.Action) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	err := os.MkdirAll(ar.dir(), dirPerm)
	if err != nil {
		return fmt.Errorf("failed to create actions directory: %w", err)
	}

	data, err := json.MarshalIndent(action, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal action %s: %w", action.ID, err)
	}

	err = os.WriteFile(ar.path(action.ID), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write action %s: %w", action.ID, err)
	}

	return nil
}

// Delete removes the action file, returning ErrActionNotFound if absent.
func (ar *ActionRepository) Delete(ctx context.Context, id string) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	err := os.Remove(ar.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("action %s: %w", id, persistence.ErrActionNotFound)
		}

		return fmt.Errorf("failed to delete action %s: %w", id, err)
	}

	return nil
}
