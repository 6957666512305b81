package storage

import (
	"context"
	"time"

	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
)

//go:generate moq -out state_mock.go . StateStorage

// StateStorage defines the local durable store of the sync engine.
// The whole state is one serialized record: it is read once at startup
// and rewritten on every mutation of the operation log.
type StateStorage interface {
	// SaveState atomically replaces the persisted record
	SaveState(ctx context.Context, state *State) error

	// LoadState returns the persisted record
	// Returns ErrStateNotFound if nothing has been saved yet
	LoadState(ctx context.Context) (*State, error)
}

// State персистентная часть состояния движка синхронизации
type State struct {
	LastSyncAt    *time.Time               `json:"last_sync_at,omitempty"`
	ObservedClock crdt.VectorClock         `json:"observed_clock,omitempty"` // ObservedClock счетчики удаленных устройств, увиденные в конфликтах
	DeviceID      string                   `json:"device_id"`
	OperationLog  []*models.SyncEvent      `json:"operation_log"`
	Conflicts     []*models.ConflictRecord `json:"conflicts,omitempty"`
	Lost          []*models.LostOperation  `json:"lost,omitempty"`
}
