package storage

import (
	"context"

	"github.com/iudanet/opsync/internal/models"
)

// EntityStorage defines persistence of authoritative entity state written
// by the SQL-backed appliers
type EntityStorage interface {
	// SaveEntity creates or replaces the entity row
	SaveEntity(ctx context.Context, entity *models.Entity) error

	// GetEntity retrieves an entity, deleted ones included
	// Returns ErrEntityNotFound if it does not exist
	GetEntity(ctx context.Context, entityType, entityID string) (*models.Entity, error)

	// ListEntities returns the non-deleted entities of a type ordered by id
	ListEntities(ctx context.Context, entityType string) ([]*models.Entity, error)
}
