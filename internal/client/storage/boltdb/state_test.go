package boltdb

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
)

func sampleState() *storage.State {
	lastSync := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &storage.State{
		DeviceID:   "device-1",
		LastSyncAt: &lastSync,
		OperationLog: []*models.SyncEvent{
			{
				Operation: &models.Operation{
					ID:           "op-1",
					Kind:         models.KindCreate,
					EntityType:   models.EntityProducts,
					EntityID:     "sku-1",
					DeviceID:     "device-1",
					Payload:      json.RawMessage(`{"name":"widget"}`),
					CreatedAt:    1000,
					LocalVersion: 1,
					VectorClock:  crdt.VectorClock{"device-1": 1000},
				},
				Status:     models.StatusFailed,
				Priority:   models.PriorityHigh,
				RetryCount: 2,
				LastError:  "connection refused",
			},
		},
		ObservedClock: crdt.VectorClock{"device-2": 900},
	}
}

func TestLoadState_NotFound(t *testing.T) {
	store, _ := setupTestStorage(t)

	state, err := store.LoadState(context.Background())
	assert.ErrorIs(t, err, storage.ErrStateNotFound)
	assert.Nil(t, state)
}

func TestSaveState_RoundTrip(t *testing.T) {
	store, _ := setupTestStorage(t)
	ctx := context.Background()

	want := sampleState()
	require.NoError(t, store.SaveState(ctx, want))

	got, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, want.DeviceID, got.DeviceID)
	require.Len(t, got.OperationLog, 1)
	assert.Equal(t, want.OperationLog[0].Operation, got.OperationLog[0].Operation)
	assert.Equal(t, models.StatusFailed, got.OperationLog[0].Status)
	assert.Equal(t, 2, got.OperationLog[0].RetryCount)
	assert.True(t, want.LastSyncAt.Equal(*got.LastSyncAt))
	assert.Equal(t, want.ObservedClock, got.ObservedClock)
}

func TestSaveState_Overwrites(t *testing.T) {
	store, _ := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveState(ctx, sampleState()))
	require.NoError(t, store.SaveState(ctx, &storage.State{DeviceID: "device-1"}))

	got, err := store.LoadState(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.OperationLog)
}

func TestState_SurvivesReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath)
	require.NoError(t, err)
	require.NoError(t, store.SaveState(ctx, sampleState()))
	require.NoError(t, store.Close())

	reopened, err := New(ctx, dbPath)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, "device-1", got.DeviceID)
	assert.Len(t, got.OperationLog, 1)
}

func TestState_ClosedStorage(t *testing.T) {
	store, _ := setupTestStorage(t)
	require.NoError(t, store.Close())

	ctx := context.Background()
	assert.ErrorIs(t, store.SaveState(ctx, sampleState()), storage.ErrStorageClosed)

	_, err := store.LoadState(ctx)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
