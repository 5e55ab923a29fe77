package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// RecordRepository stores execution records in the execution_records table.
// The trail is append-only.
type RecordRepository struct {
	db *sql.DB
}

// Append inserts a new execution record.
func (rr *RecordRepository) Append(ctx context.Context, record *models.ExecutionRecord) error {
	_, err := rr.db.ExecContext(ctx, `
		INSERT INTO execution_records
			(id, action_id, action_name, action_kind, started_at, duration_ms,
			 status, return_code, summary, request_snapshot, response_snapshot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		record.ID, record.ActionID, record.ActionName, record.ActionKind,
		record.StartedAt, record.DurationMs, record.Status, record.ReturnCode,
		record.Summary, record.RequestSnapshot, record.ResponseSnapshot)
	if err != nil {
		return fmt.Errorf("failed to append record %s: %w", record.ID, err)
	}

	return nil
}

// List returns all execution records ordered by start time, oldest first.
func (rr *RecordRepository) List(ctx context.Context) ([]*models.ExecutionRecord, error) {
	rows, err := rr.db.QueryContext(ctx, `
		SELECT id, action_id, action_name, action_kind, started_at, duration_ms,
		       status, return_code, summary, request_snapshot, response_snapshot
		FROM execution_records ORDER BY started_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := make([]*models.ExecutionRecord, 0)

	for rows.Next() {
		var record models.ExecutionRecord

		err = rows.Scan(&record.ID, &record.ActionID, &record.ActionName,
			&record.ActionKind, &record.StartedAt, &record.DurationMs,
			&record.Status, &record.ReturnCode, &record.Summary,
			&record.RequestSnapshot, &record.ResponseSnapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}
