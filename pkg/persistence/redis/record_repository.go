package redis

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/opsdeck/opsdeck/pkg/models"
)

// RecordRepository stores execution records in a Redis list, preserving
// append order. The trail is append-only.
type RecordRepository struct {
	client redis.UniversalClient
}

// Append pushes a new execution record onto the tail of the trail.
func (rr *RecordRepository) Append(ctx context.Context, record *models.ExecutionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", record.ID, err)
	}

	err = rr.client.RPush(ctx, recordsKey, data).Err()
	if err != nil {
		return fmt.Errorf("failed to append record %s: %w", record.ID, err)
	}

	return nil
}

// List returns all execution records in append order.
func (rr *RecordRepository) List(ctx context.Context) ([]*models.ExecutionRecord, error) {
	payloads, err := rr.client.LRange(ctx, recordsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0, len(payloads))

	for i, payload := range payloads {
		var record models.ExecutionRecord

		err = json.Unmarshal([]byte(payload), &record)
		if err != nil {
			return nil, fmt.Errorf("failed to parse record at index %d: %w", i, err)
		}

		records = append(records, &record)
	}

	return records, nil
}
