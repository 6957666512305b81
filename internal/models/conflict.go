package models

import (
	"fmt"
	"time"
)

// ConflictKind классификация конфликта
type ConflictKind string

const (
	ConflictConcurrentUpdate ConflictKind = "concurrent_update"
	ConflictDeleteUpdate     ConflictKind = "delete_update"
	ConflictCreateDuplicate  ConflictKind = "create_duplicate"
)

// Resolution исход разрешения конфликта
type Resolution string

const (
	ResolutionLocalWins     Resolution = "local_wins"
	ResolutionRemoteWins    Resolution = "remote_wins"
	ResolutionPendingManual Resolution = "pending_manual"
)

// ParseManualResolution accepts only the two decisions a human can make
func ParseManualResolution(s string) (Resolution, error) {
	switch Resolution(s) {
	case ResolutionLocalWins, ResolutionRemoteWins:
		return Resolution(s), nil
	default:
		return "", fmt.Errorf("invalid resolution %q: must be %s or %s", s, ResolutionLocalWins, ResolutionRemoteWins)
	}
}

// ConflictRecord элемент очереди ручного разрешения конфликтов
type ConflictRecord struct {
	DetectedAt      time.Time    `json:"detected_at"`
	ResolvedAt      *time.Time   `json:"resolved_at,omitempty"`
	LocalOperation  *Operation   `json:"local_operation"`
	RemoteOperation *Operation   `json:"remote_operation"`
	OperationID     string       `json:"operation_id"`
	ConflictKind    ConflictKind `json:"conflict_kind"`
	Resolution      Resolution   `json:"resolution"`
}

// IsOpen reports whether the conflict still waits for a decision
func (c *ConflictRecord) IsOpen() bool {
	return c.Resolution == ResolutionPendingManual && c.ResolvedAt == nil
}

// ConflictReport фиксирует, что сервер сообщил устройству о конфликте по операции.
// Без отчета решение по операции не принимается.
type ConflictReport struct {
	ReportedAt        time.Time `json:"reported_at"`
	OperationID       string    `json:"operation_id"`
	DeviceID          string    `json:"device_id"`
	EntityID          string    `json:"entity_id"`
	RemoteOperationID string    `json:"remote_operation_id"`
}

// ResolutionRecord решение по конфликту, принятое сервером через endpoint разрешения
type ResolutionRecord struct {
	ResolvedAt  time.Time  `json:"resolved_at"`
	OperationID string     `json:"operation_id"`
	DeviceID    string     `json:"device_id"`
	Resolution  Resolution `json:"resolution"`
}
