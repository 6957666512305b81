package models

import (
	"encoding/json"
	"time"
)

// DeviceStatus серверные счетчики по устройству (Device State Tracker)
type DeviceStatus struct {
	LastSyncAt     time.Time `json:"last_sync_at"`
	DeviceID       string    `json:"device_id"`
	OperationCount int64     `json:"operation_count"`
	ConflictCount  int64     `json:"conflict_count"`
}

// Entity представляет авторитетное состояние бизнес-сущности на сервере.
// Пишется SQL applier'ом.
type Entity struct {
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	EntityType      string          `json:"entity_type"`       // EntityType "products", "inventory", "orders", "shipments"
	EntityID        string          `json:"entity_id"`         // EntityID идентификатор сущности
	LastOperationID string          `json:"last_operation_id"` // LastOperationID последняя примененная операция (для идемпотентности)
	Payload         json.RawMessage `json:"payload"`           // Payload последнее принятое содержимое
	Version         int64           `json:"version"`           // Version число примененных операций
	Deleted         bool            `json:"deleted"`           // Deleted флаг soft delete
}

// Entity type tags served by the bundled appliers
const (
	EntityProducts  = "products"
	EntityInventory = "inventory"
	EntityOrders    = "orders"
	EntityShipments = "shipments"
)
