// Package postgres provides PostgreSQL persistence for actions and
// execution records.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // postgres driver

	"github.com/opsdeck/opsdeck/pkg/persistence"
	"github.com/opsdeck/opsdeck/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db         *sql.DB
	logger     *slog.Logger
	actionRepo *ActionRepository
	recordRepo *RecordRepository
}

// NewPersistence connects to PostgreSQL and runs pending schema migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:         database,
		logger:     logger,
		actionRepo: &ActionRepository{db: database},
		recordRepo: &RecordRepository{db: database},
	}, nil
}

func (p *Persistence) ActionRepository() persistence.ActionRepository {
	return p.actionRepo
}

func (p *Persistence) RecordRepository() persistence.RecordRepository {
	return p.recordRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE actions (
				id VARCHAR(255) PRIMARY KEY,
				kind VARCHAR(16) NOT NULL CHECK (kind IN ('api', 'script', 'env')),
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL,
				method VARCHAR(16),
				tags JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_actions_kind ON actions(kind);
			CREATE INDEX idx_actions_created_at ON actions(created_at);

			CREATE TABLE execution_records (
				id UUID PRIMARY KEY,
				action_id VARCHAR(255) NOT NULL,
				action_name VARCHAR(255) NOT NULL,
				action_kind VARCHAR(16) NOT NULL,
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				duration_ms BIGINT NOT NULL,
				status VARCHAR(16) NOT NULL CHECK (status IN ('SUCCESS', 'FAILURE', 'CANCELLED')),
				return_code INT NOT NULL,
				summary TEXT NOT NULL DEFAULT '',
				request_snapshot TEXT NOT NULL DEFAULT '',
				response_snapshot TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_execution_records_action_id ON execution_records(action_id);
			CREATE INDEX idx_execution_records_started_at ON execution_records(started_at);
		`,
	}
}
