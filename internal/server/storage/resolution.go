package storage

import (
	"context"

	"github.com/iudanet/opsync/internal/models"
)

// ResolutionStorage defines persistence of conflict bookkeeping: the
// conflicts reported to devices and the resolutions they send back. A
// local_wins record lets the operation through the conflict window check
// when it is sent again.
type ResolutionStorage interface {
	// SaveConflictReport creates or replaces the report for an operation
	SaveConflictReport(ctx context.Context, rep *models.ConflictReport) error

	// GetConflictReport retrieves the latest report for an operation
	// Returns ErrConflictReportNotFound if no conflict was reported
	GetConflictReport(ctx context.Context, operationID string) (*models.ConflictReport, error)

	// SaveResolution creates or replaces the resolution of an operation
	SaveResolution(ctx context.Context, rec *models.ResolutionRecord) error

	// GetResolution retrieves the resolution of an operation
	// Returns ErrResolutionNotFound if none was recorded
	GetResolution(ctx context.Context, operationID string) (*models.ResolutionRecord, error)
}
