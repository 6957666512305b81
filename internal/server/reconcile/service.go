// Package reconcile is the server side of synchronization: it accepts
// batches of device operations, detects conflicts against operations other
// devices already got accepted, dispatches the rest to entity appliers and
// keeps per-device counters.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/applier"
	"github.com/iudanet/opsync/internal/server/storage"
	"github.com/iudanet/opsync/pkg/api"
)

// DefaultConflictWindow - операции разных устройств над одной сущностью ближе
// этого интервала по createdAt считаются конфликтующими
const DefaultConflictWindow = 60 * time.Second

var (
	// ErrInvalidOperation indicates a malformed operation in a batch
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrInvalidRequest indicates a malformed request to the service
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConflictNotReported indicates a resolution for an operation the
	// server never reported as conflicting to that device
	ErrConflictNotReported = errors.New("no conflict reported for operation")

	// ErrOperationAccepted indicates a resolution for an operation that is
	// already accepted
	ErrOperationAccepted = errors.New("operation already accepted")
)

// Service - Server Reconciliation Service плюс Device State Tracker
type Service struct {
	ops         storage.OperationStorage
	devices     storage.DeviceStorage
	resolutions storage.ResolutionStorage
	appliers    *applier.Registry
	tx          storage.Transactor
	locks       *keyedMutex
	logger      *slog.Logger
	now         func() time.Time
	window      time.Duration
}

// NewService creates the reconciliation service. A non-positive window
// falls back to DefaultConflictWindow. When ops implements
// storage.Transactor, applying an operation and recording it as accepted
// commit together.
func NewService(
	ops storage.OperationStorage,
	devices storage.DeviceStorage,
	resolutions storage.ResolutionStorage,
	appliers *applier.Registry,
	window time.Duration,
	logger *slog.Logger,
) *Service {
	if window <= 0 {
		window = DefaultConflictWindow
	}

	tx, _ := ops.(storage.Transactor)

	return &Service{
		ops:         ops,
		tx:          tx,
		devices:     devices,
		resolutions: resolutions,
		appliers:    appliers,
		locks:       newKeyedMutex(),
		logger:      logger,
		now:         time.Now,
		window:      window,
	}
}

// ProcessBatch handles the operations in submission order and returns one
// result per operation in the same order. Per-item problems become failure
// results; the batch itself only fails on an invalid request.
func (s *Service) ProcessBatch(ctx context.Context, ops []*models.Operation, deviceID string) ([]api.Result, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id is required", ErrInvalidRequest)
	}

	results := make([]api.Result, len(ops))
	var conflicts int64

	for i, op := range ops {
		results[i] = s.processOne(ctx, op, deviceID)
		if results[i].Status == api.ResultConflict {
			conflicts++
		}
	}

	// Счетчики устройства обновляются после пакета; ошибка не отменяет уже примененное
	if err := s.devices.RecordSync(ctx, deviceID, int64(len(ops)), conflicts, s.now()); err != nil {
		s.logger.Error("Failed to update device state", "device_id", deviceID, "error", err)
	}

	s.logger.Info("Batch processed",
		"device_id", deviceID,
		"operations", len(ops),
		"conflicts", conflicts)

	return results, nil
}

func (s *Service) processOne(ctx context.Context, op *models.Operation, deviceID string) api.Result {
	if op == nil {
		return failure("", fmt.Errorf("%w: empty operation", ErrInvalidOperation))
	}
	if err := validateOperation(op, deviceID); err != nil {
		return failure(op.ID, err)
	}

	unlock := s.locks.Lock(op.EntityID)
	defer unlock()

	logger := s.logger.With("operation_id", op.ID, "entity_id", op.EntityID, "device_id", op.DeviceID)

	// Уже принятая операция: повтор после потери ответа
	if _, err := s.ops.GetAccepted(ctx, op.ID); err == nil {
		logger.Debug("Operation already accepted")
		return api.Result{OperationID: op.ID, Status: api.ResultSuccess}
	} else if !errors.Is(err, storage.ErrOperationNotFound) {
		logger.Error("Failed to check accepted operations", "error", err)
		return failure(op.ID, err)
	}

	override, err := s.hasLocalWinsOverride(ctx, op.ID)
	if err != nil {
		logger.Error("Failed to check resolutions", "error", err)
		return failure(op.ID, err)
	}

	if !override {
		remote, err := s.ops.FindConcurrent(ctx, op.EntityID, op.DeviceID, op.CreatedAt, s.window)
		switch {
		case err == nil:
			logger.Info("Conflict detected", "remote_operation_id", remote.ID, "remote_device_id", remote.DeviceID)
			// Без отчета устройство не сможет прислать решение: тогда это обычная неудача
			if err := s.resolutions.SaveConflictReport(ctx, &models.ConflictReport{
				OperationID:       op.ID,
				DeviceID:          op.DeviceID,
				EntityID:          op.EntityID,
				RemoteOperationID: remote.ID,
				ReportedAt:        s.now().UTC(),
			}); err != nil {
				logger.Error("Failed to record conflict report", "error", err)
				return failure(op.ID, err)
			}
			return api.Result{OperationID: op.ID, Status: api.ResultConflict, RemoteOperation: remote}
		case !errors.Is(err, storage.ErrOperationNotFound):
			logger.Error("Failed to look up concurrent operations", "error", err)
			return failure(op.ID, err)
		}
	}

	a, err := s.appliers.Lookup(op.EntityType)
	if err != nil {
		logger.Warn("No applier for operation", "entity_type", op.EntityType)
		return failure(op.ID, err)
	}

	var applyErr error
	err = s.atomically(ctx, func(ctx context.Context) error {
		if applyErr = safeApply(ctx, a, op); applyErr != nil {
			return applyErr
		}
		if err := s.ops.SaveAccepted(ctx, op, s.now()); err != nil && !errors.Is(err, storage.ErrOperationExists) {
			return fmt.Errorf("failed to record accepted operation: %w", err)
		}
		return nil
	})
	if applyErr != nil {
		logger.Warn("Applier rejected operation", "error", applyErr)
		return failure(op.ID, applyErr)
	}
	if err != nil {
		// Без транзакции изменение уже применено; повтор защищает идемпотентность applier'а
		logger.Error("Failed to record accepted operation", "error", err)
		return failure(op.ID, err)
	}

	logger.Debug("Operation accepted", "override", override)
	return api.Result{OperationID: op.ID, Status: api.ResultSuccess}
}

// atomically выполняет fn в транзакции хранилища, если оно их поддерживает
func (s *Service) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTx(ctx, fn)
}

func (s *Service) hasLocalWinsOverride(ctx context.Context, operationID string) (bool, error) {
	rec, err := s.resolutions.GetResolution(ctx, operationID)
	if errors.Is(err, storage.ErrResolutionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Resolution == models.ResolutionLocalWins, nil
}

// safeApply превращает панику applier'а в ошибку одной операции
func safeApply(ctx context.Context, a applier.Applier, op *models.Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("applier panic: %v", r)
		}
	}()
	return a.Apply(ctx, op)
}

func validateOperation(op *models.Operation, deviceID string) error {
	switch {
	case op.ID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidOperation)
	case op.EntityID == "":
		return fmt.Errorf("%w: entity id is required", ErrInvalidOperation)
	case op.EntityType == "":
		return fmt.Errorf("%w: entity type is required", ErrInvalidOperation)
	case op.DeviceID != "" && op.DeviceID != deviceID:
		return fmt.Errorf("%w: operation from device %q in batch of %q", ErrInvalidOperation, op.DeviceID, deviceID)
	}

	if _, err := models.ParseOperationKind(string(op.Kind)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}

	if op.DeviceID == "" {
		op.DeviceID = deviceID
	}
	return nil
}

func failure(operationID string, err error) api.Result {
	return api.Result{OperationID: operationID, Status: api.ResultFailure, Error: err.Error()}
}

// Resolve records a decision a device made on a reported conflict. A
// local_wins decision lets the operation bypass the conflict window on its
// next submission. Only the device the conflict was reported to can resolve
// it, and only while the operation is not accepted.
func (s *Service) Resolve(ctx context.Context, operationID, deviceID string, resolution models.Resolution) (*models.ResolutionRecord, error) {
	if operationID == "" || deviceID == "" {
		return nil, fmt.Errorf("%w: operation id and device id are required", ErrInvalidRequest)
	}
	if _, err := models.ParseManualResolution(string(resolution)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	report, err := s.resolutions.GetConflictReport(ctx, operationID)
	switch {
	case errors.Is(err, storage.ErrConflictReportNotFound):
		return nil, fmt.Errorf("%w: %s", ErrConflictNotReported, operationID)
	case err != nil:
		return nil, fmt.Errorf("failed to get conflict report: %w", err)
	case report.DeviceID != deviceID:
		return nil, fmt.Errorf("%w: %s was reported to another device", ErrConflictNotReported, operationID)
	}

	// Та же блокировка, что и в ProcessBatch: проверка и запись не разрываются отправкой
	unlock := s.locks.Lock(report.EntityID)
	defer unlock()

	if _, err := s.ops.GetAccepted(ctx, operationID); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrOperationAccepted, operationID)
	} else if !errors.Is(err, storage.ErrOperationNotFound) {
		return nil, fmt.Errorf("failed to check accepted operations: %w", err)
	}

	rec := &models.ResolutionRecord{
		OperationID: operationID,
		DeviceID:    deviceID,
		Resolution:  resolution,
		ResolvedAt:  s.now().UTC(),
	}
	if err := s.resolutions.SaveResolution(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save resolution: %w", err)
	}

	s.logger.Info("Conflict resolution recorded",
		"operation_id", operationID,
		"device_id", deviceID,
		"resolution", resolution)

	return rec, nil
}

// DeviceStatus returns the counters of a device
// Returns storage.ErrDeviceNotFound if the device never synced
func (s *Service) DeviceStatus(ctx context.Context, deviceID string) (*models.DeviceStatus, error) {
	status, err := s.devices.GetDevice(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return status, nil
}
