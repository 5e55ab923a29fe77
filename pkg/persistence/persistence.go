// Package persistence provides the storage abstraction for actions and
// execution records.
package persistence

import (
	"context"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// ActionRepository stores the registered action catalog.
type ActionRepository interface {
	List(ctx context.Context) ([]*models.Action, error)
	GetByID(ctx context.Context, id string) (*models.Action, error)
	Save(ctx context.Context, action *models.Action) error
	Delete(ctx context.Context, id string) error
}

// RecordRepository stores the append-only audit trail. Records are never
// updated or deleted.
type RecordRepository interface {
	Append(ctx context.Context, record *models.ExecutionRecord) error
	List(ctx context.Context) ([]*models.ExecutionRecord, error)
}

type Persistence interface {
	ActionRepository() ActionRepository
	RecordRepository() RecordRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
