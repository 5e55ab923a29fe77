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
)

// RecordRepository stores execution records as one JSON file per record.
// The trail is append-only; there is no update or delete path.
type RecordRepository struct {
	root string
	mu   sync.RWMutex
}

// NewRecordRepository creates a new record repository rooted at root/records.
func NewRecordRepository(root string) *RecordRepository {
	return &RecordRepository{root: root}
}

func (rr *RecordRepository) dir() string {
	return filepath.Join(rr.root, "records")
}

// Append writes a new execution record.
func (rr *RecordRepository) Append(ctx context.Context, record *models.ExecutionRecord) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	err := os.MkdirAll(rr.dir(), dirPerm)
	if err != nil {
		return fmt.Errorf("failed to create records directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record %s: %w", record.ID, err)
	}

	err = os.WriteFile(filepath.Join(rr.dir(), record.ID+".json"), data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write record %s: %w", record.ID, err)
	}

	return nil
}

// List returns all execution records ordered by start time, oldest first.
func (rr *RecordRepository) List(ctx context.Context) ([]*models.ExecutionRecord, error) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	root := os.DirFS(rr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list record files: %w", err)
	}

	records := make([]*models.ExecutionRecord, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		data, err := os.ReadFile(filepath.Join(rr.dir(), file))
		if err != nil {
			return nil, fmt.Errorf("failed to read record file %s: %w", file, err)
		}

		var record models.ExecutionRecord

		err = json.Unmarshal(data, &record)
		if err != nil {
			return nil, fmt.Errorf("failed to parse record file %s: %w", file, err)
		}

		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].StartedAt.Equal(records[j].StartedAt) {
			return records[i].ID < records[j].ID
		}

		return records[i].StartedAt.Before(records[j].StartedAt)
	})

	return records, nil
}
