package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
)

const operationColumns = `id, kind, entity_type, entity_id, device_id, payload,
	vector_clock, created_at, local_version`

// SaveAccepted records an applied operation
// Returns ErrOperationExists if the id was already accepted
func (s *Storage) SaveAccepted(ctx context.Context, op *models.Operation, acceptedAt time.Time) error {
	clock, err := json.Marshal(op.VectorClock)
	if err != nil {
		return fmt.Errorf("failed to marshal vector clock: %w", err)
	}

	query := `
		INSERT INTO accepted_operations (
			id, kind, entity_type, entity_id, device_id, payload,
			vector_clock, created_at, local_version, accepted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`

	res, err := s.conn(ctx).ExecContext(ctx, s.rebind(query),
		op.ID,
		string(op.Kind),
		op.EntityType,
		op.EntityID,
		op.DeviceID,
		payloadToNull(op.Payload),
		string(clock),
		op.CreatedAt,
		op.LocalVersion,
		acceptedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert accepted operation: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrOperationExists
	}

	return nil
}

// GetAccepted retrieves an accepted operation by id
// Returns ErrOperationNotFound if it was never accepted
func (s *Storage) GetAccepted(ctx context.Context, id string) (*models.Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM accepted_operations WHERE id = ?`

	op, err := scanOperation(s.conn(ctx).QueryRowContext(ctx, s.rebind(query), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to get accepted operation: %w", err)
	}

	return op, nil
}

// FindConcurrent returns the most recently accepted operation on entityID
// from another device within the conflict window
// Returns ErrOperationNotFound if there is none
func (s *Storage) FindConcurrent(ctx context.Context, entityID, deviceID string, createdAt int64, window time.Duration) (*models.Operation, error) {
	windowMs := window.Milliseconds()

	// |incoming - existing| < window, границы строгие
	query := `
		SELECT ` + operationColumns + `
		FROM accepted_operations
		WHERE entity_id = ? AND device_id <> ?
		  AND created_at > ? AND created_at < ?
		ORDER BY accepted_at DESC
		LIMIT 1
	`

	op, err := scanOperation(s.conn(ctx).QueryRowContext(ctx, s.rebind(query),
		entityID,
		deviceID,
		createdAt-windowMs,
		createdAt+windowMs,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrOperationNotFound
		}
		return nil, fmt.Errorf("failed to query concurrent operations: %w", err)
	}

	return op, nil
}

func scanOperation(row scanner) (*models.Operation, error) {
	op := &models.Operation{}
	var kind, clock string
	var payload sql.NullString

	err := row.Scan(
		&op.ID,
		&kind,
		&op.EntityType,
		&op.EntityID,
		&op.DeviceID,
		&payload,
		&clock,
		&op.CreatedAt,
		&op.LocalVersion,
	)
	if err != nil {
		return nil, err
	}

	op.Kind = models.OperationKind(kind)
	op.Payload = nullToPayload(payload)

	var vc crdt.VectorClock
	if err := json.Unmarshal([]byte(clock), &vc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal vector clock: %w", err)
	}
	op.VectorClock = vc

	return op, nil
}

func payloadToNull(p json.RawMessage) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(p), Valid: true}
}

func nullToPayload(ns sql.NullString) json.RawMessage {
	if !ns.Valid {
		return nil
	}
	return json.RawMessage(ns.String)
}
