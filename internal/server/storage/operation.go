package storage

import (
	"context"
	"time"

	"github.com/iudanet/opsync/internal/models"
)

//go:generate moq -out operation_mock.go . OperationStorage

// OperationStorage defines persistence of operations accepted by the
// reconciliation service. Accepted operations are the history conflict
// detection runs against and the basis of idempotent reprocessing.
type OperationStorage interface {
	// SaveAccepted records an applied operation
	// Returns ErrOperationExists if the id was already accepted
	SaveAccepted(ctx context.Context, op *models.Operation, acceptedAt time.Time) error

	// GetAccepted retrieves an accepted operation by id
	// Returns ErrOperationNotFound if it was never accepted
	GetAccepted(ctx context.Context, id string) (*models.Operation, error)

	// FindConcurrent returns the most recently accepted operation on entityID
	// from a device other than deviceID whose createdAt differs from the given
	// one by strictly less than window
	// Returns ErrOperationNotFound if there is none
	FindConcurrent(ctx context.Context, entityID, deviceID string, createdAt int64, window time.Duration) (*models.Operation, error)
}
