// Package oplog implements the device-side operation log: an append-only,
// durably persisted list of pending mutations with their sync bookkeeping.
//
// The log owns the whole persisted engine record (operation log, conflicts,
// lost operations, observed clock). Every mutation is applied to a copy,
// written to the store and only then committed in memory, so the in-memory
// state never runs ahead of what a restart would reload.
package oplog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/models"
)

var (
	// ErrOperationNotFound indicates that the operation id is not in the log
	ErrOperationNotFound = errors.New("operation not found in log")

	// ErrInvalidOperation indicates that enqueue arguments are invalid
	ErrInvalidOperation = errors.New("invalid operation")

	errNothingToRelease = errors.New("no syncing events to release")
)

// Config задает параметры журнала
type Config struct {
	// MaxRetries - после стольких неудач операция удаляется из журнала
	MaxRetries int
	// RetryBase - задержка после первой неудачи, далее удваивается; 0 отключает backoff
	RetryBase time.Duration
	// RetryMax - верхняя граница задержки
	RetryMax time.Duration
	// DeviceID - идентификатор для новой базы; пустой означает сгенерировать UUID
	DeviceID string
}

// DefaultConfig returns the log defaults
func DefaultConfig() Config {
	return Config{
		MaxRetries: 5,
		RetryBase:  time.Second,
		RetryMax:   5 * time.Minute,
	}
}

// Log журнал операций устройства
type Log struct {
	store  storage.StateStorage
	state  *storage.State
	logger *slog.Logger
	now    func() time.Time
	cfg    Config
	mu     sync.Mutex
}

// Open loads the persisted state or initializes a fresh one with a new
// device id. Events left in syncing status by a crash are returned to pending.
func Open(ctx context.Context, store storage.StateStorage, cfg Config, logger *slog.Logger) (*Log, error) {
	return OpenWithClock(ctx, store, cfg, logger, time.Now)
}

// OpenWithClock is Open with an injectable clock
func OpenWithClock(ctx context.Context, store storage.StateStorage, cfg Config, logger *slog.Logger, now func() time.Time) (*Log, error) {
	l := &Log{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    now,
	}

	state, err := store.LoadState(ctx)
	switch {
	case errors.Is(err, storage.ErrStateNotFound):
		// Первый запуск: берем deviceID из конфига или генерируем, и сразу сохраняем
		deviceID := cfg.DeviceID
		if deviceID == "" {
			deviceID = uuid.New().String()
		}
		state = &storage.State{DeviceID: deviceID}
		if err := store.SaveState(ctx, state); err != nil {
			return nil, fmt.Errorf("failed to persist initial state: %w", err)
		}
		logger.Info("Initialized new device", "device_id", state.DeviceID)
	case err != nil:
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	if state.DeviceID == "" {
		state.DeviceID = uuid.New().String()
	}
	if cfg.DeviceID != "" && cfg.DeviceID != state.DeviceID {
		// база уже привязана к устройству, смена id сломала бы векторные часы
		logger.Warn("Configured device id ignored",
			"configured", cfg.DeviceID,
			"device_id", state.DeviceID)
	}

	l.state = state

	// Восстанавливаемся после падения посреди отправки пакета
	restored := 0
	for _, ev := range l.state.OperationLog {
		if ev.Status == models.StatusSyncing {
			ev.Status = models.StatusPending
			restored++
		}
	}
	if restored > 0 {
		if err := l.store.SaveState(ctx, l.state); err != nil {
			return nil, fmt.Errorf("failed to persist restored state: %w", err)
		}
		l.logger.Warn("Restored in-flight operations after restart", "count", restored)
	}

	l.logger.Info("Operation log loaded",
		"device_id", l.state.DeviceID,
		"events", len(l.state.OperationLog),
		"conflicts", len(l.state.Conflicts))

	return l, nil
}

// DeviceID returns the identifier of this device
func (l *Log) DeviceID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.DeviceID
}

// update применяет fn к копии состояния, сохраняет ее и только после
// успешной записи делает копию текущим состоянием.
func (l *Log) update(ctx context.Context, fn func(s *storage.State) error) error {
	next := cloneState(l.state)
	if err := fn(next); err != nil {
		return err
	}
	if err := l.store.SaveState(ctx, next); err != nil {
		return fmt.Errorf("failed to persist operation log: %w", err)
	}
	l.state = next
	return nil
}

// Enqueue appends a new pending operation and returns its id.
func (l *Log) Enqueue(ctx context.Context, kind models.OperationKind, entityType, entityID string, payload []byte, priority models.Priority) (string, error) {
	if _, err := models.ParseOperationKind(string(kind)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if _, err := models.ParsePriority(string(priority)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOperation, err)
	}
	if entityType == "" || entityID == "" {
		return "", fmt.Errorf("%w: entity type and entity id are required", ErrInvalidOperation)
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return "", fmt.Errorf("%w: payload is not valid JSON", ErrInvalidOperation)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	createdAt := l.now().UnixMilli()

	op := &models.Operation{
		ID:         uuid.New().String(),
		Kind:       kind,
		EntityType: entityType,
		EntityID:   entityID,
		DeviceID:   l.state.DeviceID,
		Payload:    payload,
		CreatedAt:  createdAt,
	}

	err := l.update(ctx, func(s *storage.State) error {
		op.LocalVersion = nextLocalVersion(s.OperationLog, entityID)

		// Собственный счетчик = локальное время; счетчики других устройств
		// берутся из часов, увиденных в конфликтах (0, если не видели)
		op.VectorClock = s.ObservedClock.Clone()
		op.VectorClock[s.DeviceID] = createdAt

		s.OperationLog = append(s.OperationLog, &models.SyncEvent{
			Operation: op,
			Status:    models.StatusPending,
			Priority:  priority,
		})
		return nil
	})
	if err != nil {
		return "", err
	}

	l.logger.Debug("Operation enqueued",
		"operation_id", op.ID,
		"kind", kind,
		"entity_type", entityType,
		"entity_id", entityID,
		"priority", priority,
		"local_version", op.LocalVersion)

	return op.ID, nil
}

// nextLocalVersion = max(версии операций в очереди для сущности) + 1
func nextLocalVersion(events []*models.SyncEvent, entityID string) int64 {
	var maxVersion int64
	for _, ev := range events {
		if ev.Operation.EntityID == entityID && ev.Operation.LocalVersion > maxVersion {
			maxVersion = ev.Operation.LocalVersion
		}
	}
	return maxVersion + 1
}

// DequeueBatch selects up to maxSize events in pending or failed status,
// ordered by priority weight then creation time, and marks them syncing.
// Failed events still inside their backoff delay and events held by an
// open manual conflict are skipped. Returned events are copies.
func (l *Log) DequeueBatch(ctx context.Context, maxSize int) ([]*models.SyncEvent, error) {
	if maxSize <= 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	var candidates []*models.SyncEvent
	for _, ev := range l.state.OperationLog {
		if ev.Held {
			continue
		}
		switch ev.Status {
		case models.StatusPending:
			candidates = append(candidates, ev)
		case models.StatusFailed:
			if l.retryDue(ev, now) {
				candidates = append(candidates, ev)
			}
		}
	}

	if len(candidates) == 0 {
		return nil, nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		wi, wj := candidates[i].Priority.Weight(), candidates[j].Priority.Weight()
		if wi != wj {
			return wi < wj
		}
		return candidates[i].Operation.CreatedAt < candidates[j].Operation.CreatedAt
	})

	if len(candidates) > maxSize {
		candidates = candidates[:maxSize]
	}

	ids := make(map[string]struct{}, len(candidates))
	for _, ev := range candidates {
		ids[ev.Operation.ID] = struct{}{}
	}

	err := l.update(ctx, func(s *storage.State) error {
		for _, ev := range s.OperationLog {
			if _, ok := ids[ev.Operation.ID]; ok {
				ev.Status = models.StatusSyncing
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	batch := make([]*models.SyncEvent, 0, len(candidates))
	for _, ev := range candidates {
		clone := ev.Clone()
		clone.Status = models.StatusSyncing
		batch = append(batch, clone)
	}

	return batch, nil
}

// retryDue reports whether the backoff delay of a failed event has elapsed
func (l *Log) retryDue(ev *models.SyncEvent, now time.Time) bool {
	if ev.LastRetryAt == nil {
		return true
	}
	return !now.Before(ev.LastRetryAt.Add(l.RetryDelay(ev.RetryCount)))
}

// RetryDelay returns the wait before the next attempt after retryCount failures
func (l *Log) RetryDelay(retryCount int) time.Duration {
	if l.cfg.RetryBase <= 0 || retryCount <= 0 {
		return 0
	}

	b := retry.NewExponential(l.cfg.RetryBase)
	if l.cfg.RetryMax > 0 {
		b = retry.WithCappedDuration(l.cfg.RetryMax, b)
	}

	var delay time.Duration
	for i := 0; i < retryCount; i++ {
		delay, _ = b.Next()
	}
	return delay
}

// MarkSynced sets the event status to synced
func (l *Log) MarkSynced(ctx context.Context, operationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(s *storage.State) error {
		ev := findEvent(s.OperationLog, operationID)
		if ev == nil {
			return ErrOperationNotFound
		}
		ev.Status = models.StatusSynced
		return nil
	})
}

// MarkFailed records a failed attempt. When the retry budget is exhausted
// the event is evicted from the log, recorded as lost and returned.
func (l *Log) MarkFailed(ctx context.Context, operationID string, cause string) (*models.LostOperation, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var lost *models.LostOperation

	err := l.update(ctx, func(s *storage.State) error {
		idx := indexOf(s.OperationLog, operationID)
		if idx < 0 {
			return ErrOperationNotFound
		}
		ev := s.OperationLog[idx]
		ev.RetryCount++
		ev.LastRetryAt = &now
		ev.LastError = cause
		ev.Status = models.StatusFailed

		if l.cfg.MaxRetries > 0 && ev.RetryCount >= l.cfg.MaxRetries {
			lost = &models.LostOperation{
				Operation:  ev.Operation.Clone(),
				RetryCount: ev.RetryCount,
				LastError:  cause,
				LostAt:     now,
			}
			s.OperationLog = append(s.OperationLog[:idx], s.OperationLog[idx+1:]...)
			s.Lost = append(s.Lost, lost)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return lost, nil
}

// Remove deletes the event from the log
func (l *Log) Remove(ctx context.Context, operationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(s *storage.State) error {
		idx := indexOf(s.OperationLog, operationID)
		if idx < 0 {
			return ErrOperationNotFound
		}
		s.OperationLog = append(s.OperationLog[:idx], s.OperationLog[idx+1:]...)
		return nil
	})
}

// Requeue returns the event to pending with a fresh retry budget
func (l *Log) Requeue(ctx context.Context, operationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(s *storage.State) error {
		ev := findEvent(s.OperationLog, operationID)
		if ev == nil {
			return ErrOperationNotFound
		}
		ev.Status = models.StatusPending
		ev.RetryCount = 0
		ev.LastRetryAt = nil
		ev.LastError = ""
		ev.Held = false
		return nil
	})
}

// ReleaseSyncing returns the listed events that are still in syncing status
// to pending, without charging a retry, and reports how many were released.
// If the write fails the events are still released in memory so this process
// keeps sending them; the persisted syncing status is restored on Open.
func (l *Log) ReleaseSyncing(ctx context.Context, operationIDs ...string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make(map[string]struct{}, len(operationIDs))
	for _, id := range operationIDs {
		ids[id] = struct{}{}
	}

	release := func(s *storage.State) int {
		n := 0
		for _, ev := range s.OperationLog {
			if _, ok := ids[ev.Operation.ID]; ok && ev.Status == models.StatusSyncing {
				ev.Status = models.StatusPending
				n++
			}
		}
		return n
	}

	released := 0
	err := l.update(ctx, func(s *storage.State) error {
		released = release(s)
		if released == 0 {
			return errNothingToRelease
		}
		return nil
	})
	switch {
	case errors.Is(err, errNothingToRelease):
		return 0, nil
	case err != nil:
		return release(l.state), err
	}
	return released, nil
}

// Get returns a copy of the event
func (l *Log) Get(operationID string) (*models.SyncEvent, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev := findEvent(l.state.OperationLog, operationID)
	if ev == nil {
		return nil, ErrOperationNotFound
	}
	return ev.Clone(), nil
}

// Events returns copies of all events in log order
func (l *Log) Events() []*models.SyncEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	events := make([]*models.SyncEvent, 0, len(l.state.OperationLog))
	for _, ev := range l.state.OperationLog {
		events = append(events, ev.Clone())
	}
	return events
}

// Len returns the number of events in the log
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.state.OperationLog)
}

// PendingCount returns the number of events still waiting to be sent,
// held events included
func (l *Log) PendingCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ev := range l.state.OperationLog {
		if ev.Status != models.StatusSynced {
			n++
		}
	}
	return n
}

func findEvent(events []*models.SyncEvent, operationID string) *models.SyncEvent {
	if idx := indexOf(events, operationID); idx >= 0 {
		return events[idx]
	}
	return nil
}

func indexOf(events []*models.SyncEvent, operationID string) int {
	for i, ev := range events {
		if ev.Operation.ID == operationID {
			return i
		}
	}
	return -1
}
