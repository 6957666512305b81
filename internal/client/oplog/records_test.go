package oplog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
)

func TestHold_ExcludesFromBatchesUntilRequeued(t *testing.T) {
	clock := newTestClock()
	l, store := setupBoltLog(t, noBackoff(), clock)
	ctx := context.Background()

	id, err := l.Enqueue(ctx, models.KindUpdate, models.EntityProducts, "p-1", nil, models.PriorityCritical)
	require.NoError(t, err)
	ev, err := l.Get(id)
	require.NoError(t, err)

	record := &models.ConflictRecord{
		OperationID:     id,
		ConflictKind:    models.ConflictConcurrentUpdate,
		LocalOperation:  ev.Operation,
		RemoteOperation: &models.Operation{ID: "remote-1", DeviceID: "dev-b", EntityID: "p-1"},
		Resolution:      models.ResolutionPendingManual,
		DetectedAt:      clock.now,
	}
	require.NoError(t, l.Hold(ctx, record))

	batch, err := l.DequeueBatch(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, batch)

	open, err := l.OpenConflict(id)
	require.NoError(t, err)
	assert.Equal(t, "remote-1", open.RemoteOperation.ID)
	assert.Len(t, l.Conflicts(true), 1)

	// Запись конфликта сохранена вместе с флагом Held
	state, err := store.LoadState(ctx)
	require.NoError(t, err)
	require.Len(t, state.Conflicts, 1)
	assert.True(t, state.OperationLog[0].Held)

	require.NoError(t, l.CloseConflict(ctx, id, models.ResolutionLocalWins))
	require.NoError(t, l.Requeue(ctx, id))

	_, err = l.OpenConflict(id)
	assert.ErrorIs(t, err, ErrConflictNotFound)
	assert.Empty(t, l.Conflicts(true))

	all := l.Conflicts(false)
	require.Len(t, all, 1)
	assert.Equal(t, models.ResolutionLocalWins, all[0].Resolution)
	require.NotNil(t, all[0].ResolvedAt)

	batch, err = l.DequeueBatch(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, batch, 1)
}

func TestHold_UnknownOperation(t *testing.T) {
	clock := newTestClock()
	l, _ := setupBoltLog(t, noBackoff(), clock)

	err := l.Hold(context.Background(), &models.ConflictRecord{OperationID: "nope", Resolution: models.ResolutionPendingManual})
	assert.ErrorIs(t, err, ErrOperationNotFound)
	assert.Empty(t, l.Conflicts(false))
}

func TestCloseConflict_NotFound(t *testing.T) {
	clock := newTestClock()
	l, _ := setupBoltLog(t, noBackoff(), clock)

	err := l.CloseConflict(context.Background(), "nope", models.ResolutionRemoteWins)
	assert.ErrorIs(t, err, ErrConflictNotFound)
}

func TestRecordConflict_AuditTrail(t *testing.T) {
	clock := newTestClock()
	l, _ := setupBoltLog(t, noBackoff(), clock)

	resolvedAt := clock.now
	err := l.RecordConflict(context.Background(), &models.ConflictRecord{
		OperationID: "op-1",
		Resolution:  models.ResolutionRemoteWins,
		ResolvedAt:  &resolvedAt,
	})
	require.NoError(t, err)

	assert.Empty(t, l.Conflicts(true))
	assert.Len(t, l.Conflicts(false), 1)
}

func TestAcknowledgeLost(t *testing.T) {
	clock := newTestClock()
	l, _ := setupBoltLog(t, Config{MaxRetries: 1}, clock)
	ctx := context.Background()

	var ids []string
	for _, entity := range []string{"o-1", "o-2", "o-3"} {
		id, err := l.Enqueue(ctx, models.KindCreate, models.EntityOrders, entity, nil, models.PriorityLow)
		require.NoError(t, err)
		lost, err := l.MarkFailed(ctx, id, "rejected")
		require.NoError(t, err)
		require.NotNil(t, lost)
		ids = append(ids, id)
	}
	require.Len(t, l.Lost(), 3)

	removed, err := l.AcknowledgeLost(ctx, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Len(t, l.Lost(), 2)

	removed, err = l.AcknowledgeLost(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Empty(t, l.Lost())
}

func TestObserve_ExtendsNewOperationClocks(t *testing.T) {
	clock := newTestClock()
	l, _ := setupBoltLog(t, noBackoff(), clock)
	ctx := context.Background()

	self := l.DeviceID()
	require.NoError(t, l.Observe(ctx, crdt.VectorClock{"dev-b": 500, self: 99999999999999}))
	require.NoError(t, l.Observe(ctx, crdt.VectorClock{"dev-b": 400, "dev-c": 7}))

	id, err := l.Enqueue(ctx, models.KindUpdate, models.EntityProducts, "p-1", nil, models.PriorityLow)
	require.NoError(t, err)

	ev, err := l.Get(id)
	require.NoError(t, err)
	assert.Equal(t, crdt.VectorClock{
		self:    clock.now.UnixMilli(),
		"dev-b": 500,
		"dev-c": 7,
	}, ev.Operation.VectorClock)
}

func TestLastSyncAt(t *testing.T) {
	clock := newTestClock()
	l, _ := setupBoltLog(t, noBackoff(), clock)

	assert.Nil(t, l.LastSyncAt())

	at := clock.now.Add(time.Minute)
	require.NoError(t, l.SetLastSyncAt(context.Background(), at))
	require.NotNil(t, l.LastSyncAt())
	assert.True(t, at.Equal(*l.LastSyncAt()))
}
