package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/iudanet/opsync/internal/client/conflict"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/pkg/api"
)

// CycleResult итог одного цикла синхронизации
type CycleResult struct {
	// TransportError - причина отказа всего пакета, если ответ не получен
	TransportError string
	Sent           int
	Synced         int
	Conflicts      int
	Failed         int
	Lost           int
	// Skipped - цикл не запускался: движок offline или цикл уже идет
	Skipped bool
}

// RunSyncCycle sends one batch and applies the per-operation outcomes.
// It is a no-op while offline or while another cycle is running. Retryable
// failures are absorbed into the log; the returned error reports only local
// storage problems. Once a batch is dequeued the cycle runs to completion:
// cancelling ctx does not abort the send, only BatchTimeout bounds it.
func (e *Engine) RunSyncCycle(ctx context.Context) (*CycleResult, error) {
	e.mu.Lock()
	if e.syncInProgress || !e.isOnline {
		e.mu.Unlock()
		return &CycleResult{Skipped: true}, nil
	}
	e.syncInProgress = true
	e.mu.Unlock()

	// Всегда возвращаемся в Idle
	defer func() {
		e.mu.Lock()
		e.syncInProgress = false
		e.mu.Unlock()
	}()

	batch, err := e.log.DequeueBatch(ctx, e.cfg.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue batch: %w", err)
	}

	result := &CycleResult{}
	if len(batch) == 0 {
		return result, nil
	}
	result.Sent = len(batch)

	// Пакет уже помечен syncing: отмена ctx (Shutdown) не должна оборвать
	// отправку и засчитать ложную неудачу
	work := context.WithoutCancel(ctx)

	// Операции, чей исход не удалось записать, возвращаются в pending
	defer e.releaseUnfinished(work, batch)

	ops := make([]*api.Operation, 0, len(batch))
	for _, ev := range batch {
		ops = append(ops, ev.Operation)
	}

	e.logger.Info("Sending batch", "operations", len(ops))

	// Офлайн посреди отправки не прерывает пакет: ждем ответа или таймаута
	sendCtx, cancel := context.WithTimeout(work, e.cfg.BatchTimeout)
	resp, err := e.server.Reconcile(sendCtx, api.ReconcileRequest{
		DeviceID:   e.log.DeviceID(),
		Operations: ops,
	})
	cancel()

	if err == nil && len(resp.Results) != len(batch) {
		err = fmt.Errorf("%w: %d results for %d operations", ErrResultMismatch, len(resp.Results), len(batch))
	}
	if err != nil {
		e.logger.Warn("Batch send failed, operations will be retried",
			"operations", len(batch),
			"error", err)
		result.TransportError = err.Error()
		var errs []error
		for _, ev := range batch {
			if ferr := e.fail(work, ev, result.TransportError, result); ferr != nil {
				errs = append(errs, ferr)
			}
		}
		return result, errors.Join(errs...)
	}

	// Ошибка записи одного исхода не останавливает обработку остальных
	var errs []error
	for i, res := range resp.Results {
		ev := batch[i]
		if res.OperationID != "" && res.OperationID != ev.Operation.ID {
			e.logger.Warn("Result does not match submitted operation",
				"expected", ev.Operation.ID,
				"got", res.OperationID)
		}

		var err error
		switch res.Status {
		case api.ResultSuccess:
			err = e.succeed(work, ev, result)
		case api.ResultConflict:
			err = e.handleConflict(work, ev, res.RemoteOperation, result)
		default:
			cause := res.Error
			if cause == "" {
				cause = fmt.Sprintf("server reported status %q", res.Status)
			}
			err = e.fail(work, ev, cause, result)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	if err := e.log.SetLastSyncAt(work, e.now()); err != nil {
		errs = append(errs, fmt.Errorf("failed to record sync time: %w", err))
	}
	if len(errs) > 0 {
		return result, errors.Join(errs...)
	}

	e.logger.Info("Sync cycle completed",
		"sent", result.Sent,
		"synced", result.Synced,
		"conflicts", result.Conflicts,
		"failed", result.Failed,
		"lost", result.Lost)

	return result, nil
}

// releaseUnfinished возвращает в pending события пакета, оставшиеся в syncing
func (e *Engine) releaseUnfinished(ctx context.Context, batch []*models.SyncEvent) {
	ids := make([]string, 0, len(batch))
	for _, ev := range batch {
		ids = append(ids, ev.Operation.ID)
	}
	released, err := e.log.ReleaseSyncing(ctx, ids...)
	if err != nil {
		e.logger.Error("Failed to persist released operations", "operations", released, "error", err)
		return
	}
	if released > 0 {
		e.logger.Warn("Operations returned to pending after incomplete cycle", "operations", released)
	}
}

func (e *Engine) succeed(ctx context.Context, ev *models.SyncEvent, result *CycleResult) error {
	id := ev.Operation.ID
	if err := e.log.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("failed to mark %s synced: %w", id, err)
	}
	if err := e.log.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove synced %s: %w", id, err)
	}
	result.Synced++
	e.emit(Event{Type: EventOperationSynced, OperationID: id})
	return nil
}

// fail учитывает неудачную попытку; при исчерпании бюджета операция теряется
func (e *Engine) fail(ctx context.Context, ev *models.SyncEvent, cause string, result *CycleResult) error {
	id := ev.Operation.ID
	lost, err := e.log.MarkFailed(ctx, id, cause)
	if err != nil {
		return fmt.Errorf("failed to record failed attempt of %s: %w", id, err)
	}
	result.Failed++

	if lost == nil {
		e.logger.Debug("Operation attempt failed", "operation_id", id, "retry_count", ev.RetryCount+1, "error", cause)
		return nil
	}

	result.Lost++
	e.logger.Error("Operation dropped after exhausting retries",
		"operation_id", id,
		"entity_type", lost.Operation.EntityType,
		"entity_id", lost.Operation.EntityID,
		"retry_count", lost.RetryCount,
		"error", cause)
	e.emit(Event{
		Type:        EventOperationLost,
		OperationID: id,
		Lost:        lost,
		Err:         fmt.Errorf("%w: %s", ErrRetryBudgetExhausted, cause),
	})
	return nil
}

// handleConflict передает пару в Conflict Resolver и применяет решение
func (e *Engine) handleConflict(ctx context.Context, ev *models.SyncEvent, remote *models.Operation, result *CycleResult) error {
	local := ev.Operation
	if remote == nil {
		return e.fail(ctx, ev, "conflict reported without remote operation", result)
	}

	// Расширяем собственные часы тем, что узнали об удаленном устройстве
	if err := e.log.Observe(ctx, remote.VectorClock); err != nil {
		e.logger.Warn("Failed to record observed clock", "operation_id", local.ID, "error", err)
	}

	now := e.now()
	record := &models.ConflictRecord{
		OperationID:     local.ID,
		ConflictKind:    conflict.Classify(local, remote),
		LocalOperation:  local,
		RemoteOperation: remote,
		Resolution:      e.resolver.Decide(local, remote),
		DetectedAt:      now,
	}
	result.Conflicts++

	e.logger.Info("Conflict detected",
		"operation_id", local.ID,
		"remote_operation_id", remote.ID,
		"entity_id", local.EntityID,
		"kind", record.ConflictKind,
		"resolution", record.Resolution)

	switch record.Resolution {
	case models.ResolutionLocalWins:
		// Без подтверждения сервер снова сообщит о конфликте: считаем попытку неудачной
		if err := e.acknowledge(ctx, local.ID, models.ResolutionLocalWins); err != nil {
			e.logger.Warn("Failed to acknowledge local win", "operation_id", local.ID, "error", err)
			return e.fail(ctx, ev, err.Error(), result)
		}
		record.ResolvedAt = &now
		if err := e.log.RecordConflict(ctx, record); err != nil {
			return fmt.Errorf("failed to record conflict: %w", err)
		}
		if err := e.applyResolution(ctx, local.ID, models.ResolutionLocalWins); err != nil {
			return err
		}
		e.emit(Event{Type: EventConflictResolved, OperationID: local.ID, Conflict: record})

	case models.ResolutionRemoteWins:
		record.ResolvedAt = &now
		if err := e.log.RecordConflict(ctx, record); err != nil {
			return fmt.Errorf("failed to record conflict: %w", err)
		}
		if err := e.applyResolution(ctx, local.ID, models.ResolutionRemoteWins); err != nil {
			return err
		}
		e.emit(Event{Type: EventConflictResolved, OperationID: local.ID, Conflict: record})

	default:
		if err := e.log.Hold(ctx, record); err != nil {
			return fmt.Errorf("failed to hold conflicting operation: %w", err)
		}
		e.emit(Event{Type: EventConflictDetected, OperationID: local.ID, Conflict: record})
	}

	return nil
}
