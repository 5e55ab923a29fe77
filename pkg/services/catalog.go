package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/opsdeck/opsdeck/pkg/eventbus"
	"github.com/opsdeck/opsdeck/pkg/events"
	"github.com/opsdeck/opsdeck/pkg/models"
	"github.com/opsdeck/opsdeck/pkg/registry"
)

// Catalog is the configuration service for registered actions. Writes go
// through the registry so the in-memory view and the persisted catalog
// stay in step, and each change is announced on the event bus.
type Catalog struct {
	logger    *slog.Logger
	registry  *registry.Registry
	publisher eventbus.EventPublisher
	validator *validator.Validate
}

// NewCatalog creates the catalog service. The publisher may be nil.
func NewCatalog(logger *slog.Logger, reg *registry.Registry, publisher eventbus.EventPublisher) *Catalog {
	return &Catalog{
		logger:    logger.With("module", "catalog"),
		registry:  reg,
		publisher: publisher,
		validator: validator.New(),
	}
}

// List returns every registered action in registration order.
func (c *Catalog) List() []*models.Action {
	return c.registry.List()
}

// Get returns one action by id.
func (c *Catalog) Get(id string) (*models.Action, error) {
	action, ok := c.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("action %s: %w", id, ErrActionNotFound)
	}

	return action, nil
}

// Create validates and registers a new action.
func (c *Catalog) Create(ctx context.Context, action *models.Action) (*models.Action, error) {
	if err := c.validator.Struct(action); err != nil {
		return nil, NewValidationError("Create", "INVALID_ACTION", err.Error(), ErrInvalidRequest)
	}

	created, err := c.registry.Add(ctx, action)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Created action", "action_id", created.ID, "kind", created.Kind)
	c.publishChange(ctx, created.ID, "created")

	return created, nil
}

// Update validates and replaces an existing action, preserving its
// creation time and its position in the catalog order.
func (c *Catalog) Update(ctx context.Context, id string, action *models.Action) (*models.Action, error) {
	action.ID = id

	if err := c.validator.Struct(action); err != nil {
		return nil, NewValidationError("Update", "INVALID_ACTION", err.Error(), ErrInvalidRequest)
	}

	updated, err := c.registry.Update(ctx, action)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Updated action", "action_id", id)
	c.publishChange(ctx, id, "updated")

	return updated, nil
}

// Delete removes an action from the catalog. Entries already waiting in an
// execution queue fail at execution time with an audit record.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	err := c.registry.Remove(ctx, id)
	if err != nil {
		return err
	}

	c.logger.Info("Deleted action", "action_id", id)
	c.publishChange(ctx, id, "deleted")

	return nil
}

func (c *Catalog) publishChange(ctx context.Context, actionID, change string) {
	if c.publisher == nil {
		return
	}

	event := events.ActionCatalogChanged{
		BaseEvent: events.NewBaseEvent(events.ActionCatalogChangedEvent, ""),
		ActionID:  actionID,
		Change:    change,
	}

	err := c.publisher.Publish(ctx, actionID, event)
	if err != nil {
		c.logger.WarnContext(ctx, "Failed to publish catalog changed event", "error", err)
	}
}
