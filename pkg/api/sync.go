package api

import (
	"time"

	"github.com/iudanet/opsync/internal/models"
)

// Operation - операция в том виде, в котором она передается по сети
type Operation = models.Operation

// ResultStatus исход обработки одной операции сервером
type ResultStatus string

const (
	ResultSuccess  ResultStatus = "success"
	ResultConflict ResultStatus = "conflict"
	ResultFailure  ResultStatus = "failure"
)

// ReconcileRequest пакет операций от устройства
type ReconcileRequest struct {
	DeviceID   string       `json:"device_id"`  // DeviceID устройство-отправитель
	Operations []*Operation `json:"operations"` // Operations в порядке отправки
}

// Result исход по одной операции.
// RemoteOperation заполнен только для conflict, Error - только для failure.
type Result struct {
	RemoteOperation *Operation   `json:"remote_operation,omitempty"`
	OperationID     string       `json:"operation_id"`
	Status          ResultStatus `json:"status"`
	Error           string       `json:"error,omitempty"`
}

// ReconcileResponse ответ сервера; Results[i] соответствует Operations[i]
type ReconcileResponse struct {
	Results []Result `json:"results"`
}

// ResolveRequest ручное (или автоматическое) решение по конфликту
type ResolveRequest struct {
	OperationID string            `json:"operation_id"`
	Resolution  models.Resolution `json:"resolution"`
	DeviceID    string            `json:"device_id"`
}

// ResolveResponse подтверждение решения
type ResolveResponse struct {
	OperationID  string            `json:"operation_id"`
	Resolution   models.Resolution `json:"resolution"`
	Acknowledged bool              `json:"acknowledged"`
}

// DeviceStatusResponse счетчики Device State Tracker
type DeviceStatusResponse struct {
	LastSyncAt     time.Time `json:"last_sync_at"`
	DeviceID       string    `json:"device_id"`
	OperationCount int64     `json:"operation_count"`
	ConflictCount  int64     `json:"conflict_count"`
}

// HealthResponse ответ health check
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
