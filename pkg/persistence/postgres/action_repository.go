package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/persistence"
)

// ActionRepository stores actions in the actions table.
type ActionRepository struct {
	db *sql.DB
}

const actionColumns = "id, kind, name, description, content, method, tags, created_at, updated_at"

// List returns all stored actions ordered by creation time, oldest first.
func (ar *ActionRepository) List(ctx context.Context) ([]*models.Action, error) {
	rows, err := ar.db.QueryContext(ctx,
		"SELECT "+actionColumns+" FROM actions ORDER BY created_at, id")
	if err != nil {
		return nil, fmt.Errorf("failed to list actions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	actions := make([]*models.Action, 0)

	for rows.Next() {
		action, err := scanAction(rows)
		if err != nil {
			return nil, err
		}

		actions = append(actions, action)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate actions: %w", err)
	}

	return actions, nil
}

// GetByID returns the action with the given id or ErrActionNotFound.
func (ar *ActionRepository) GetByID(ctx context.Context, id string) (*models.Action, error) {
	row := ar.db.QueryRowContext(ctx,
		"SELECT "+actionColumns+" FROM actions WHERE id = $1", id)

	action, err := scanAction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("action %s: %w", id, persistence.ErrActionNotFound)
		}

		return nil, err
	}

	return action, nil
}

// Save inserts the action or replaces an existing row with the same id.
func (ar *ActionRepository) Save(ctx context.Context, action *models.Action) error {
	tags, err := json.Marshal(action.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags for action %s: %w", action.ID, err)
	}

	_, err = ar.db.ExecContext(ctx, `
		INSERT INTO actions (id, kind, name, description, content, method, tags, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			content = EXCLUDED.content,
			method = EXCLUDED.method,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at`,
		action.ID, action.Kind, action.Name, action.Description, action.Content,
		nullable(action.Method), tags, action.CreatedAt, action.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save action %s: %w", action.ID, err)
	}

	return nil
}

// Delete removes the action, returning ErrActionNotFound if absent.
func (ar *ActionRepository) Delete(ctx context.Context, id string) error {
	result, err := ar.db.ExecContext(ctx, "DELETE FROM actions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete action %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for action %s: %w", id, err)
	}

	if affected == 0 {
		return fmt.Errorf("action %s: %w", id, persistence.ErrActionNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAction(row rowScanner) (*models.Action, error) {
	var (
		action models.Action
		method sql.NullString
		tags   []byte
	)

	err := row.Scan(&action.ID, &action.Kind, &action.Name, &action.Description,
		&action.Content, &method, &tags, &action.CreatedAt, &action.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		return nil, fmt.Errorf("failed to scan action: %w", err)
	}

	action.Method = method.String

	if len(tags) > 0 {
		err = json.Unmarshal(tags, &action.Tags)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tags for action %s: %w", action.ID, err)
		}
	}

	return &action, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
