package storage

import "errors"

// Common client storage errors
var (
	// ErrStateNotFound indicates that no engine state has been persisted yet
	ErrStateNotFound = errors.New("engine state not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
