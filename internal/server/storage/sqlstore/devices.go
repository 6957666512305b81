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

// RecordSync adds the batch counters to the device row and sets its last sync time
func (s *Storage) RecordSync(ctx context.Context, deviceID string, operations, conflicts int64, at time.Time) error {
	// Инкремент атомарный: параллельные пакеты одного устройства не теряют счетчики
	query := `
		INSERT INTO devices (device_id, operation_count, conflict_count, last_sync_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			operation_count = devices.operation_count + excluded.operation_count,
			conflict_count = devices.conflict_count + excluded.conflict_count,
			last_sync_at = excluded.last_sync_at
	`

	_, err := s.conn(ctx).ExecContext(ctx, s.rebind(query), deviceID, operations, conflicts, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to record device sync: %w", err)
	}

	return nil
}

// GetDevice retrieves the device counters
// Returns ErrDeviceNotFound if the device never synced
func (s *Storage) GetDevice(ctx context.Context, deviceID string) (*models.DeviceStatus, error) {
	query := `
		SELECT device_id, operation_count, conflict_count, last_sync_at
		FROM devices
		WHERE device_id = ?
	`

	status := &models.DeviceStatus{}
	var lastSyncAt int64

	err := s.conn(ctx).QueryRowContext(ctx, s.rebind(query), deviceID).Scan(
		&status.DeviceID,
		&status.OperationCount,
		&status.ConflictCount,
		&lastSyncAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	status.LastSyncAt = time.UnixMilli(lastSyncAt).UTC()
	return status, nil
}
