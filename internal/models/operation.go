package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/iudanet/opsync/internal/crdt"
)

// OperationKind тип мутации
type OperationKind string

const (
	KindCreate OperationKind = "create"
	KindUpdate OperationKind = "update"
	KindDelete OperationKind = "delete"
)

// ParseOperationKind validates a kind coming from user input or the wire
func ParseOperationKind(s string) (OperationKind, error) {
	switch OperationKind(s) {
	case KindCreate, KindUpdate, KindDelete:
		return OperationKind(s), nil
	default:
		return "", fmt.Errorf("unknown operation kind %q", s)
	}
}

// Priority бизнес-приоритет операции, назначается при постановке в очередь
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Weight returns the sort key of the priority: lower weight is sent first.
// Unknown priorities sort after low.
func (p Priority) Weight() int {
	switch p {
	case PriorityCritical:
		return 1
	case PriorityHigh:
		return 2
	case PriorityMedium:
		return 3
	case PriorityLow:
		return 4
	default:
		return 5
	}
}

// ParsePriority validates a priority name
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(s), nil
	default:
		return "", fmt.Errorf("unknown priority %q", s)
	}
}

// SyncStatus статус записи в журнале операций
type SyncStatus string

const (
	StatusPending SyncStatus = "pending"
	StatusSyncing SyncStatus = "syncing"
	StatusSynced  SyncStatus = "synced"
	StatusFailed  SyncStatus = "failed"
)

// Operation представляет намерение изменить сущность.
// После создания не изменяется.
type Operation struct {
	VectorClock  crdt.VectorClock `json:"vector_clock"`  // VectorClock причинная история, известная устройству-источнику
	ID           string           `json:"id"`            // ID глобально уникальный идентификатор (UUID)
	Kind         OperationKind    `json:"kind"`          // Kind create, update или delete
	EntityType   string           `json:"entity_type"`   // EntityType тег applier'а: "products", "inventory", ...
	EntityID     string           `json:"entity_id"`     // EntityID идентификатор бизнес-сущности
	DeviceID     string           `json:"device_id"`     // DeviceID устройство-источник
	Payload      json.RawMessage  `json:"payload"`       // Payload непрозрачные данные, их интерпретирует только applier
	CreatedAt    int64            `json:"created_at"`    // CreatedAt локальное время устройства, мс с эпохи
	LocalVersion int64            `json:"local_version"` // LocalVersion версия сущности с точки зрения устройства
}

// Clone создает глубокую копию операции
func (o *Operation) Clone() *Operation {
	var payload json.RawMessage
	if o.Payload != nil {
		payload = make(json.RawMessage, len(o.Payload))
		copy(payload, o.Payload)
	}

	return &Operation{
		ID:           o.ID,
		Kind:         o.Kind,
		EntityType:   o.EntityType,
		EntityID:     o.EntityID,
		DeviceID:     o.DeviceID,
		Payload:      payload,
		CreatedAt:    o.CreatedAt,
		LocalVersion: o.LocalVersion,
		VectorClock:  o.VectorClock.Clone(),
	}
}

// SyncEvent запись журнала операций: операция плюс метаданные синхронизации
type SyncEvent struct {
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	Operation   *Operation `json:"operation"`
	Status      SyncStatus `json:"status"`
	Priority    Priority   `json:"priority"`
	LastError   string     `json:"last_error,omitempty"`
	RetryCount  int        `json:"retry_count"`
	// Held помечает операцию с открытым ручным конфликтом: она не отправляется
	Held bool `json:"held,omitempty"`
}

// Clone создает глубокую копию события
func (e *SyncEvent) Clone() *SyncEvent {
	clone := *e
	clone.Operation = e.Operation.Clone()
	if e.LastRetryAt != nil {
		t := *e.LastRetryAt
		clone.LastRetryAt = &t
	}
	return &clone
}

// LostOperation фиксирует операцию, удаленную из журнала после исчерпания попыток.
// Это граница потери данных, о ней нужно сообщить пользователю.
type LostOperation struct {
	LostAt     time.Time  `json:"lost_at"`
	Operation  *Operation `json:"operation"`
	LastError  string     `json:"last_error"`
	RetryCount int        `json:"retry_count"`
}
