package storage

import (
	"context"
	"time"

	"github.com/iudanet/opsync/internal/models"
)

// DeviceStorage defines persistence of the per-device sync counters
type DeviceStorage interface {
	// RecordSync adds the batch counters to the device row, creating it on
	// first sync, and sets its last sync time
	RecordSync(ctx context.Context, deviceID string, operations, conflicts int64, at time.Time) error

	// GetDevice retrieves the device counters
	// Returns ErrDeviceNotFound if the device never synced
	GetDevice(ctx context.Context, deviceID string) (*models.DeviceStatus, error)
}
