package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/applier"
	"github.com/iudanet/opsync/internal/server/storage"
	"github.com/iudanet/opsync/internal/server/storage/sqlstore"
	"github.com/iudanet/opsync/pkg/api"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingApplier records applied operation ids
type countingApplier struct {
	applied map[string]int
	mu      sync.Mutex
}

func (c *countingApplier) Apply(_ context.Context, op *models.Operation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applied[op.ID]++
	return nil
}

func (c *countingApplier) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.applied[id]
}

func setupService(t *testing.T, registry *applier.Registry) (*Service, *sqlstore.Storage) {
	t.Helper()

	store, err := sqlstore.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewService(store, store, store, registry, DefaultConflictWindow, discardLogger()), store
}

func countingRegistry() (*applier.Registry, *countingApplier) {
	c := &countingApplier{applied: make(map[string]int)}
	r := applier.NewRegistry()
	for _, et := range []string{models.EntityProducts, models.EntityInventory, models.EntityOrders, models.EntityShipments} {
		r.Register(et, c)
	}
	return r, c
}

func update(id, device, entity string, createdAt int64) *models.Operation {
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

func TestProcessBatch_ConcurrentUpdatesFromTwoDevices(t *testing.T) {
	registry, counter := countingRegistry()
	svc, _ := setupService(t, registry)
	ctx := context.Background()

	base := int64(1_700_000_000_000)
	opA := update("op-a", "dev-a", "X", base)
	opB := update("op-b", "dev-b", "X", base+30_000)

	first, err := svc.ProcessBatch(ctx, []*models.Operation{opA}, "dev-a")
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, api.ResultSuccess, first[0].Status)

	second, err := svc.ProcessBatch(ctx, []*models.Operation{opB}, "dev-b")
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, api.ResultConflict, second[0].Status)
	require.NotNil(t, second[0].RemoteOperation)
	assert.Equal(t, "op-a", second[0].RemoteOperation.ID)
	assert.Equal(t, "dev-a", second[0].RemoteOperation.DeviceID)

	assert.Equal(t, 1, counter.count("op-a"))
	assert.Equal(t, 0, counter.count("op-b"))
}

func TestProcessBatch_OutsideWindowOrSameDevice(t *testing.T) {
	registry, _ := countingRegistry()
	svc, _ := setupService(t, registry)
	ctx := context.Background()

	base := int64(1_700_000_000_000)

	_, err := svc.ProcessBatch(ctx, []*models.Operation{update("op-a", "dev-a", "X", base)}, "dev-a")
	require.NoError(t, err)

	results, err := svc.ProcessBatch(ctx, []*models.Operation{
		update("op-b", "dev-b", "X", base+60_000), // ровно на границе окна
		update("op-a2", "dev-a", "X", base+1),     // то же устройство
	}, "dev-b")
	require.NoError(t, err)
	assert.Equal(t, api.ResultSuccess, results[0].Status)
	// op-a2 из чужого пакета отклоняется
	assert.Equal(t, api.ResultFailure, results[1].Status)

	results, err = svc.ProcessBatch(ctx, []*models.Operation{update("op-a2", "dev-a", "X", base+1)}, "dev-a")
	require.NoError(t, err)
	// op-b отстоит от op-a2 меньше чем на окно
	assert.Equal(t, api.ResultConflict, results[0].Status)
	assert.Equal(t, "op-b", results[0].RemoteOperation.ID)
}

func TestProcessBatch_Idempotent(t *testing.T) {
	registry, counter := countingRegistry()
	svc, _ := setupService(t, registry)
	ctx := context.Background()

	batch := []*models.Operation{
		update("op-1", "dev-a", "p-1", 1000),
		update("op-2", "dev-a", "p-2", 1001),
	}

	for i := 0; i < 2; i++ {
		results, err := svc.ProcessBatch(ctx, batch, "dev-a")
		require.NoError(t, err)
		for _, r := range results {
			assert.Equal(t, api.ResultSuccess, r.Status, "round %d", i)
		}
	}

	assert.Equal(t, 1, counter.count("op-1"))
	assert.Equal(t, 1, counter.count("op-2"))
}

func TestProcessBatch_PreservesOrderAndIsolatesFailures(t *testing.T) {
	registry := applier.NewRegistry()
	registry.Register(models.EntityProducts, &applier.ApplierMock{
		ApplyFunc: func(ctx context.Context, op *models.Operation) error {
			switch op.ID {
			case "op-reject":
				return &applier.ApplierError{EntityType: op.EntityType, OperationID: op.ID, Err: errors.New("price below cost")}
			case "op-panic":
				panic("nil pointer in pricing rules")
			}
			return nil
		},
	})
	svc, store := setupService(t, registry)
	ctx := context.Background()

	unknown := update("op-unknown", "dev-a", "inv-1", 1000)
	unknown.EntityType = "invoices"

	badKind := update("op-kind", "dev-a", "p-9", 1000)
	badKind.Kind = "upsert"

	batch := []*models.Operation{
		update("op-ok-1", "dev-a", "p-1", 1000),
		update("op-reject", "dev-a", "p-2", 1000),
		update("op-panic", "dev-a", "p-3", 1000),
		unknown,
		badKind,
		update("op-ok-2", "dev-a", "p-4", 1000),
	}

	results, err := svc.ProcessBatch(ctx, batch, "dev-a")
	require.NoError(t, err)
	require.Len(t, results, len(batch))

	for i, op := range batch {
		assert.Equal(t, op.ID, results[i].OperationID)
	}

	assert.Equal(t, api.ResultSuccess, results[0].Status)
	assert.Equal(t, api.ResultFailure, results[1].Status)
	assert.Contains(t, results[1].Error, "price below cost")
	assert.Equal(t, api.ResultFailure, results[2].Status)
	assert.Contains(t, results[2].Error, "applier panic")
	assert.Equal(t, api.ResultFailure, results[3].Status)
	assert.Contains(t, results[3].Error, applier.ErrUnknownEntityType.Error())
	assert.Equal(t, api.ResultFailure, results[4].Status)
	assert.Equal(t, api.ResultSuccess, results[5].Status)

	// Отклоненные операции не считаются принятыми и могут быть повторены
	_, err = store.GetAccepted(ctx, "op-reject")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)
	_, err = store.GetAccepted(ctx, "op-ok-2")
	require.NoError(t, err)
}

func TestProcessBatch_UpdatesDeviceState(t *testing.T) {
	registry, _ := countingRegistry()
	svc, _ := setupService(t, registry)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.DeviceStatus(ctx, "dev-b")
	assert.ErrorIs(t, err, storage.ErrDeviceNotFound)

	_, err = svc.ProcessBatch(ctx, []*models.Operation{update("op-a", "dev-a", "X", 1000)}, "dev-a")
	require.NoError(t, err)

	_, err = svc.ProcessBatch(ctx, []*models.Operation{
		update("op-b1", "dev-b", "X", 2000),
		update("op-b2", "dev-b", "Y", 2000),
		update("op-b3", "dev-b", "X", 3000),
	}, "dev-b")
	require.NoError(t, err)

	status, err := svc.DeviceStatus(ctx, "dev-b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.OperationCount)
	assert.Equal(t, int64(2), status.ConflictCount)
	assert.True(t, now.Equal(status.LastSyncAt))

	// Пустой пакет тоже отмечает синхронизацию
	later := now.Add(time.Minute)
	svc.now = func() time.Time { return later }
	_, err = svc.ProcessBatch(ctx, nil, "dev-b")
	require.NoError(t, err)

	status, err = svc.DeviceStatus(ctx, "dev-b")
	require.NoError(t, err)
	assert.Equal(t, int64(3), status.OperationCount)
	assert.True(t, later.Equal(status.LastSyncAt))
}

func TestProcessBatch_LocalWinsOverride(t *testing.T) {
	registry, counter := countingRegistry()
	svc, _ := setupService(t, registry)
	ctx := context.Background()

	_, err := svc.ProcessBatch(ctx, []*models.Operation{update("op-a", "dev-a", "X", 1000)}, "dev-a")
	require.NoError(t, err)

	opB := update("op-b", "dev-b", "X", 2000)
	results, err := svc.ProcessBatch(ctx, []*models.Operation{opB}, "dev-b")
	require.NoError(t, err)
	require.Equal(t, api.ResultConflict, results[0].Status)

	// remote_wins не снимает проверку окна
	_, err = svc.Resolve(ctx, "op-b", "dev-b", models.ResolutionRemoteWins)
	require.NoError(t, err)
	results, err = svc.ProcessBatch(ctx, []*models.Operation{opB}, "dev-b")
	require.NoError(t, err)
	assert.Equal(t, api.ResultConflict, results[0].Status)

	rec, err := svc.Resolve(ctx, "op-b", "dev-b", models.ResolutionLocalWins)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionLocalWins, rec.Resolution)

	results, err = svc.ProcessBatch(ctx, []*models.Operation{opB}, "dev-b")
	require.NoError(t, err)
	assert.Equal(t, api.ResultSuccess, results[0].Status)
	assert.Equal(t, 1, counter.count("op-b"))
}

func TestResolve_Validation(t *testing.T) {
	registry, _ := countingRegistry()
	svc, _ := setupService(t, registry)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "op-1", "dev-a", models.ResolutionPendingManual)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Resolve(ctx, "", "dev-a", models.ResolutionLocalWins)
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.ProcessBatch(ctx, nil, "")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestResolve_RequiresReportedConflict(t *testing.T) {
	registry, _ := countingRegistry()
	svc, store := setupService(t, registry)
	ctx := context.Background()

	// Решение заранее не позволяет обойти проверку окна
	_, err := svc.Resolve(ctx, "op-b", "dev-b", models.ResolutionLocalWins)
	require.ErrorIs(t, err, ErrConflictNotReported)
	_, err = store.GetResolution(ctx, "op-b")
	assert.ErrorIs(t, err, storage.ErrResolutionNotFound)

	_, err = svc.ProcessBatch(ctx, []*models.Operation{update("op-a", "dev-a", "X", 1000)}, "dev-a")
	require.NoError(t, err)
	results, err := svc.ProcessBatch(ctx, []*models.Operation{update("op-b", "dev-b", "X", 2000)}, "dev-b")
	require.NoError(t, err)
	require.Equal(t, api.ResultConflict, results[0].Status)

	report, err := store.GetConflictReport(ctx, "op-b")
	require.NoError(t, err)
	assert.Equal(t, "dev-b", report.DeviceID)
	assert.Equal(t, "X", report.EntityID)
	assert.Equal(t, "op-a", report.RemoteOperationID)

	// Другое устройство не может решить чужой конфликт
	_, err = svc.Resolve(ctx, "op-b", "dev-c", models.ResolutionLocalWins)
	assert.ErrorIs(t, err, ErrConflictNotReported)

	// Принятая операция не принимает решений
	_, err = svc.Resolve(ctx, "op-a", "dev-a", models.ResolutionLocalWins)
	assert.ErrorIs(t, err, ErrConflictNotReported)

	_, err = svc.Resolve(ctx, "op-b", "dev-b", models.ResolutionLocalWins)
	require.NoError(t, err)
	results, err = svc.ProcessBatch(ctx, []*models.Operation{update("op-b", "dev-b", "X", 2000)}, "dev-b")
	require.NoError(t, err)
	require.Equal(t, api.ResultSuccess, results[0].Status)

	_, err = svc.Resolve(ctx, "op-b", "dev-b", models.ResolutionRemoteWins)
	assert.ErrorIs(t, err, ErrOperationAccepted)
}

func TestProcessBatch_ParallelBatchesOnSameEntity(t *testing.T) {
	registry, counter := countingRegistry()
	svc, _ := setupService(t, registry)
	ctx := context.Background()

	const devices = 8
	var wg sync.WaitGroup
	statuses := make([]api.ResultStatus, devices)

	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			device := fmt.Sprintf("dev-%d", i)
			results, err := svc.ProcessBatch(ctx, []*models.Operation{update("op-"+device, device, "X", 1000+int64(i))}, device)
			assert.NoError(t, err)
			statuses[i] = results[0].Status
		}(i)
	}
	wg.Wait()

	// Ровно одна операция принята, остальные конфликтуют с ней
	success := 0
	for i, st := range statuses {
		switch st {
		case api.ResultSuccess:
			success++
			assert.Equal(t, 1, counter.count(fmt.Sprintf("op-dev-%d", i)))
		default:
			assert.Equal(t, api.ResultConflict, st)
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 0, svc.locks.size())
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	k := newKeyedMutex()

	unlock := k.Lock("a")
	acquired := make(chan struct{})
	go func() {
		u := k.Lock("a")
		close(acquired)
		u()
	}()

	// Другой ключ не блокируется
	k.Lock("b")()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while first held")
	case <-time.After(20 * time.Millisecond):
	}

	unlock()
	<-acquired
	assert.Eventually(t, func() bool { return k.size() == 0 }, time.Second, time.Millisecond)
}

func TestProcessBatch_StorageErrors(t *testing.T) {
	registry, counter := countingRegistry()
	store, err := sqlstore.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	dbErr := errors.New("database is locked")
	ops := &storage.OperationStorageMock{
		GetAcceptedFunc: func(ctx context.Context, id string) (*models.Operation, error) {
			if id == "op-broken" {
				return nil, dbErr
			}
			return nil, storage.ErrOperationNotFound
		},
		FindConcurrentFunc: func(ctx context.Context, entityID, deviceID string, createdAt int64, window time.Duration) (*models.Operation, error) {
			return nil, storage.ErrOperationNotFound
		},
		SaveAcceptedFunc: func(ctx context.Context, op *models.Operation, acceptedAt time.Time) error {
			return storage.ErrOperationExists
		},
	}

	svc := NewService(ops, store, store, registry, 0, discardLogger())
	assert.Equal(t, DefaultConflictWindow, svc.window)

	results, err := svc.ProcessBatch(context.Background(), []*models.Operation{
		update("op-broken", "dev-a", "p-1", 1000),
		update("op-raced", "dev-a", "p-2", 1000),
	}, "dev-a")
	require.NoError(t, err)

	assert.Equal(t, api.ResultFailure, results[0].Status)
	assert.Contains(t, results[0].Error, "database is locked")
	// Гонка на записи принятой операции не является ошибкой
	assert.Equal(t, api.ResultSuccess, results[1].Status)
	assert.Equal(t, 1, counter.count("op-raced"))

	require.Len(t, ops.FindConcurrentCalls(), 1)
	assert.Equal(t, DefaultConflictWindow, ops.FindConcurrentCalls()[0].Window)
}

// acceptFailingStore ломает запись принятых операций, пока fail выставлен
type acceptFailingStore struct {
	*sqlstore.Storage
	fail bool
}

func (s *acceptFailingStore) SaveAccepted(ctx context.Context, op *models.Operation, acceptedAt time.Time) error {
	if s.fail {
		return errors.New("disk I/O error")
	}
	return s.Storage.SaveAccepted(ctx, op, acceptedAt)
}

func TestProcessBatch_ApplyRolledBackWhenAcceptFails(t *testing.T) {
	ctx := context.Background()
	store, err := sqlstore.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	registry, err := applier.NewDefaultRegistry(store, discardLogger())
	require.NoError(t, err)

	ops := &acceptFailingStore{Storage: store, fail: true}
	svc := NewService(ops, store, store, registry, DefaultConflictWindow, discardLogger())
	require.NotNil(t, svc.tx)

	op := update("op-1", "dev-a", "p-1", 1000)
	op.Kind = models.KindCreate
	op.Payload = json.RawMessage(`{"name":"Widget","sku":"W-1","price":10}`)

	results, err := svc.ProcessBatch(ctx, []*models.Operation{op}, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, api.ResultFailure, results[0].Status)
	assert.Contains(t, results[0].Error, "disk I/O error")

	// Изменение сущности откатилось вместе с записью операции
	_, err = store.GetEntity(ctx, models.EntityProducts, "p-1")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
	_, err = store.GetAccepted(ctx, "op-1")
	assert.ErrorIs(t, err, storage.ErrOperationNotFound)

	// Повторная отправка применяет операцию ровно один раз
	ops.fail = false
	results, err = svc.ProcessBatch(ctx, []*models.Operation{op}, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, api.ResultSuccess, results[0].Status)

	got, err := store.GetEntity(ctx, models.EntityProducts, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "op-1", got.LastOperationID)
	_, err = store.GetAccepted(ctx, "op-1")
	assert.NoError(t, err)
}
