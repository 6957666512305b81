package sqlstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
)

func testOperation(id, device, entity string, createdAt int64) *models.Operation {
	return &models.Operation{
		ID:           id,
		Kind:         models.KindUpdate,
		EntityType:   models.EntityProducts,
		EntityID:     entity,
		DeviceID:     device,
		Payload:      json.RawMessage(`{"price":10}`),
		CreatedAt:    createdAt,
		LocalVersion: 1,
		VectorClock:  crdt.VectorClock{device: createdAt},
	}
}

func TestSaveAccepted_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	op := testOperation("op-1", "dev-a", "p-1", 1000)
	require.NoError(t, s.SaveAccepted(ctx, op, time.Now()))

	got, err := s.GetAccepted(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, op, got)

	err = s.SaveAccepted(ctx, op, time.Now())
	assert.ErrorIs(t, err, storage.ErrOperationExists)

	_, err = s.GetAccepted(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
}

func TestSaveAccepted_NilPayload(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	op := testOperation("op-del", "dev-a", "p-1", 1000)
	op.Kind = models.KindDelete
	op.Payload = nil
	require.NoError(t, s.SaveAccepted(ctx, op, time.Now()))

	got, err := s.GetAccepted(ctx, "op-del")
	require.NoError(t, err)
	assert.Nil(t, got.Payload)
	assert.Equal(t, models.KindDelete, got.Kind)
}

func TestFindConcurrent(t *testing.T) {
	ctx := context.Background()
	s, cleanup := setupTestStorage(t)
	defer cleanup()

	window := 60 * time.Second
	base := time.Now()

	require.NoError(t, s.SaveAccepted(ctx, testOperation("b-1", "dev-b", "p-1", 100_000), base))
	require.NoError(t, s.SaveAccepted(ctx, testOperation("b-2", "dev-b", "p-1", 130_000), base.Add(time.Second)))
	require.NoError(t, s.SaveAccepted(ctx, testOperation("b-3", "dev-b", "p-2", 100_000), base))

	tests := []struct {
		name      string
		entityID  string
		deviceID  string
		wantID    string
		createdAt int64
	}{
		{name: "latest accepted wins", entityID: "p-1", deviceID: "dev-a", createdAt: 120_000, wantID: "b-2"},
		{name: "only older op in window", entityID: "p-1", deviceID: "dev-a", createdAt: 45_000, wantID: "b-1"},
		{name: "exact window boundary is outside", entityID: "p-1", deviceID: "dev-a", createdAt: 190_000, wantID: ""},
		{name: "just inside boundary", entityID: "p-1", deviceID: "dev-a", createdAt: 189_999, wantID: "b-2"},
		{name: "same device never conflicts", entityID: "p-1", deviceID: "dev-b", createdAt: 120_000, wantID: ""},
		{name: "other entity", entityID: "p-9", deviceID: "dev-a", createdAt: 100_000, wantID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.FindConcurrent(ctx, tt.entityID, tt.deviceID, tt.createdAt, window)
			if tt.wantID == "" {
				assert.ErrorIs(t, err, storage.ErrOperationNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}
