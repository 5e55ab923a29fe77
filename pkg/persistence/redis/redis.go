// Package redis provides Redis-backed persistence for actions and execution
// records.
package redis

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/opsdeck/opsdeck/pkg/persistence"
)

const (
	actionsKey = "opsdeck:actions"
	recordsKey = "opsdeck:records"
)

// Persistence implements the persistence.Persistence interface on Redis.
type Persistence struct {
	client     redis.UniversalClient
	actionRepo *ActionRepository
	recordRepo *RecordRepository
}

// NewPersistence connects to Redis using the given URL (redis://...).
func NewPersistence(ctx context.Context, redisURL string) (*Persistence, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{
		client:     client,
		actionRepo: &ActionRepository{client: client},
		recordRepo: &RecordRepository{client: client},
	}, nil
}

func (p *Persistence) ActionRepository() persistence.ActionRepository {
	return p.actionRepo
}

func (p *Persistence) RecordRepository() persistence.RecordRepository {
	return p.recordRepo
}

// HealthCheck pings the Redis server.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the underlying client.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis client: %w", err)
	}

	return nil
}
