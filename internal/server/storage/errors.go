package storage

import "errors"

// Common storage errors
var (
	// ErrOperationNotFound indicates that no accepted operation matches
	ErrOperationNotFound = errors.New("operation not found")

	// ErrOperationExists indicates that the operation id was already accepted
	ErrOperationExists = errors.New("operation already accepted")

	// ErrDeviceNotFound indicates that the device never synced
	ErrDeviceNotFound = errors.New("device not found")

	// ErrEntityNotFound indicates that the entity does not exist
	ErrEntityNotFound = errors.New("entity not found")

	// ErrConflictReportNotFound indicates that no conflict was reported for the operation
	ErrConflictReportNotFound = errors.New("conflict report not found")

	// ErrResolutionNotFound indicates that no resolution was recorded for the operation
	ErrResolutionNotFound = errors.New("resolution not found")
)
