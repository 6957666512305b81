package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
)

// SaveEntity creates or replaces the entity row
func (s *Storage) SaveEntity(ctx context.Context, entity *models.Entity) error {
	query := `
		INSERT INTO entities (
			entity_type, entity_id, payload, version, deleted,
			last_operation_id, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			payload = excluded.payload,
			version = excluded.version,
			deleted = excluded.deleted,
			last_operation_id = excluded.last_operation_id,
			updated_at = excluded.updated_at
	`

	_, err := s.conn(ctx).ExecContext(ctx, s.rebind(query),
		entity.EntityType,
		entity.EntityID,
		payloadToNull(entity.Payload),
		entity.Version,
		boolToInt(entity.Deleted),
		entity.LastOperationID,
		entity.CreatedAt.UnixMilli(),
		entity.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	return nil
}

// GetEntity retrieves an entity, deleted ones included
// Returns ErrEntityNotFound if it does not exist
func (s *Storage) GetEntity(ctx context.Context, entityType, entityID string) (*models.Entity, error) {
	query := `
		SELECT entity_type, entity_id, payload, version, deleted,
		       last_operation_id, created_at, updated_at
		FROM entities
		WHERE entity_type = ? AND entity_id = ?
	`

	entity, err := scanEntity(s.conn(ctx).QueryRowContext(ctx, s.rebind(query), entityType, entityID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return entity, nil
}

// ListEntities returns the non-deleted entities of a type ordered by id
func (s *Storage) ListEntities(ctx context.Context, entityType string) ([]*models.Entity, error) {
	query := `
		SELECT entity_type, entity_id, payload, version, deleted,
		       last_operation_id, created_at, updated_at
		FROM entities
		WHERE entity_type = ? AND deleted = 0
		ORDER BY entity_id
	`

	rows, err := s.conn(ctx).QueryContext(ctx, s.rebind(query), entityType)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	entities := make([]*models.Entity, 0)
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entities, nil
}

// scanner общий интерфейс *sql.Row и *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanEntity(row scanner) (*models.Entity, error) {
	entity := &models.Entity{}
	var payload sql.NullString
	var deleted int
	var createdAt, updatedAt int64

	err := row.Scan(
		&entity.EntityType,
		&entity.EntityID,
		&payload,
		&entity.Version,
		&deleted,
		&entity.LastOperationID,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	entity.Payload = nullToPayload(payload)
	entity.Deleted = intToBool(deleted)
	entity.CreatedAt = time.UnixMilli(createdAt).UTC()
	entity.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return entity, nil
}
