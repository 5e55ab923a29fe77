package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	redis "github.com/redis/go-redis/v9"

	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence"
)

// ActionRepository stores actions in a Redis hash keyed by action id.
type ActionRepository struct {
	client redis.UniversalClient
}

// List returns all stored actions ordered by creation time, oldest first.
func (ar *ActionRepository) List(ctx context.Context) ([]*models.Action, error) {
	fields, err := ar.client.HGetAll(ctx, actionsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}

	actions := make([]*models.Action, 0, len(fields))

	for id, payload := range fields {
		var action models.Action

		err = json.Unmarshal([]byte(payload), &action)
		if err != nil {
			return nil, fmt.Errorf("failed to parse action %s: %w", id, err)
		}

		actions = append(actions, &action)
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
	payload, err := ar.client.HGet(ctx, actionsKey, id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("action %s: %w", id, persistence.ErrActionNotFound)
		}

		return nil, fmt.Errorf("failed to get action %s: %w", id, err)
	}

	var action models.Action

	err = json.Unmarshal([]byte(payload), &action)
	if err != nil {
		return nil, fmt.Errorf("failed to parse action %s: %w", id, err)
	}

	return &action, nil
}

// Save writes the action, creating or replacing its hash field.
func (ar *ActionRepository) Save(ctx context.Context, action *models.Action) error {
	data, err := json.Marshal(action)
	if err != nil {
		return fmt.Errorf("failed to marshal action %s: %w", action.ID, err)
	}

	err = ar.client.HSet(ctx, actionsKey, action.ID, data).Err()
	if err != nil {
		return fmt.Errorf("failed to save action %s: %w", action.ID, err)
	}

	return nil
}

// Delete removes the action, returning ErrActionNotFound if absent.
func (ar *ActionRepository) Delete(ctx context.Context, id string) error {
	removed, err := ar.client.HDel(ctx, actionsKey, id).Result()
	if err != nil {
		return fmt.Errorf("failed to delete action %s: %w", id, err)
	}

	if removed == 0 {
		return fmt.Errorf("action %s: %w", id, persistence.ErrActionNotFound)
	}

	return nil
}
