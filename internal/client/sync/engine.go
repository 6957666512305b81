// Package sync is the device-side sync engine: it owns the engine state,
// schedules sync cycles and drives the batch exchange with the
// reconciliation server.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/opsync/internal/client/conflict"
	"github.com/iudanet/opsync/internal/client/oplog"
	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/pkg/api"
)

//go:generate moq -out server_mock.go . ServerAPI

// ServerAPI is the part of the HTTP client the engine depends on
type ServerAPI interface {
	// Reconcile отправляет пакет операций
	Reconcile(ctx context.Context, req api.ReconcileRequest) (*api.ReconcileResponse, error)

	// Resolve сообщает серверу решение по конфликту
	Resolve(ctx context.Context, req api.ResolveRequest) (*api.ResolveResponse, error)

	// Health проверяет доступность сервера
	Health(ctx context.Context) error
}

var (
	// ErrRetryBudgetExhausted is carried by EventOperationLost
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")

	// ErrResultMismatch indicates a response whose results do not line up with the batch
	ErrResultMismatch = errors.New("result count does not match batch")
)

// Config параметры движка
type Config struct {
	// BatchSize - максимальный размер пакета
	BatchSize int
	// SyncInterval - период плановой синхронизации
	SyncInterval time.Duration
	// BatchTimeout - таймаут одной отправки пакета
	BatchTimeout time.Duration
	// ProbeInterval - период проверки доступности сервера; 0 отключает проверку
	ProbeInterval time.Duration
}

// DefaultConfig returns the engine defaults
func DefaultConfig() Config {
	return Config{
		BatchSize:     50,
		SyncInterval:  30 * time.Second,
		BatchTimeout:  15 * time.Second,
		ProbeInterval: 0,
	}
}

// EventType тип уведомления движка
type EventType string

const (
	EventOperationSynced  EventType = "operation_synced"
	EventConflictDetected EventType = "conflict_detected"
	EventConflictResolved EventType = "conflict_resolved"
	EventOperationLost    EventType = "operation_lost"
	EventOnlineChanged    EventType = "online_changed"
)

// Event уведомление для UI или CLI.
// Conflict заполнен для событий конфликта, Lost - для потерянных операций.
type Event struct {
	Err         error
	Conflict    *models.ConflictRecord
	Lost        *models.LostOperation
	Type        EventType
	OperationID string
	Online      bool
}

// EngineState снимок состояния движка
type EngineState struct {
	LastSyncAt     *time.Time
	DeviceID       string
	Pending        int
	OpenConflicts  int
	Lost           int
	IsOnline       bool
	SyncInProgress bool
}

// Engine владеет состоянием синхронизации устройства.
// Создается один раз при старте процесса и передается по ссылке.
type Engine struct {
	server   ServerAPI
	log      *oplog.Log
	resolver *conflict.Resolver
	logger   *slog.Logger
	now      func() time.Time
	events   chan Event
	trigger  chan struct{}
	cancel   context.CancelFunc
	cfg      Config
	wg       sync.WaitGroup
	mu       sync.Mutex

	isOnline       bool
	syncInProgress bool
}

// NewEngine creates an engine over an opened operation log.
// The engine starts online; the prober or SetOnline adjust it.
func NewEngine(log *oplog.Log, server ServerAPI, resolver *conflict.Resolver, cfg Config, logger *slog.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultConfig().SyncInterval
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = DefaultConfig().BatchTimeout
	}

	return &Engine{
		log:      log,
		server:   server,
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		events:   make(chan Event, 64),
		trigger:  make(chan struct{}, 1),
		isOnline: true,
	}
}

// Events returns the notification channel. Events are dropped when nobody
// drains it; everything they report is also queryable on the engine.
func (e *Engine) Events() <-chan Event {
	return e.events
}

func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		e.logger.Debug("Event channel full, dropping event", "type", ev.Type, "operation_id", ev.OperationID)
	}
}

// Enqueue records a local mutation. Critical operations request an
// immediate sync without waiting for it.
func (e *Engine) Enqueue(ctx context.Context, kind models.OperationKind, entityType, entityID string, payload []byte, priority models.Priority) (string, error) {
	id, err := e.log.Enqueue(ctx, kind, entityType, entityID, payload, priority)
	if err != nil {
		return "", err
	}

	e.logger.Debug("Operation enqueued",
		"operation_id", id,
		"entity_type", entityType,
		"entity_id", entityID,
		"priority", priority)

	if priority == models.PriorityCritical {
		e.RequestSync()
	}
	return id, nil
}

// State returns a snapshot of the engine state
func (e *Engine) State() EngineState {
	e.mu.Lock()
	online, inProgress := e.isOnline, e.syncInProgress
	e.mu.Unlock()

	return EngineState{
		DeviceID:       e.log.DeviceID(),
		IsOnline:       online,
		SyncInProgress: inProgress,
		LastSyncAt:     e.log.LastSyncAt(),
		Pending:        e.log.PendingCount(),
		OpenConflicts:  len(e.log.Conflicts(true)),
		Lost:           len(e.log.Lost()),
	}
}

// Conflicts returns conflict records, only unresolved ones when openOnly is set
func (e *Engine) Conflicts(openOnly bool) []*models.ConflictRecord {
	return e.log.Conflicts(openOnly)
}

// Lost returns operations evicted after exhausting their retries
func (e *Engine) Lost() []*models.LostOperation {
	return e.log.Lost()
}

// AcknowledgeLost forgets lost operations the user has been told about.
// Without ids every record is dropped.
func (e *Engine) AcknowledgeLost(ctx context.Context, operationIDs ...string) (int, error) {
	return e.log.AcknowledgeLost(ctx, operationIDs...)
}

// ResolveConflict applies a manual decision to an open conflict. The server
// is told first; local effects follow only after it acknowledged.
func (e *Engine) ResolveConflict(ctx context.Context, operationID string, resolution models.Resolution) error {
	if _, err := models.ParseManualResolution(string(resolution)); err != nil {
		return err
	}

	record, err := e.log.OpenConflict(operationID)
	if err != nil {
		return err
	}

	if err := e.acknowledge(ctx, operationID, resolution); err != nil {
		return err
	}

	if err := e.log.CloseConflict(ctx, operationID, resolution); err != nil {
		return fmt.Errorf("failed to close conflict: %w", err)
	}
	if err := e.applyResolution(ctx, operationID, resolution); err != nil {
		return err
	}

	e.logger.Info("Conflict resolved manually",
		"operation_id", operationID,
		"entity_id", record.LocalOperation.EntityID,
		"resolution", resolution)

	record.Resolution = resolution
	now := e.now()
	record.ResolvedAt = &now
	e.emit(Event{Type: EventConflictResolved, OperationID: operationID, Conflict: record})

	if resolution == models.ResolutionLocalWins {
		e.RequestSync()
	}
	return nil
}

// acknowledge отправляет решение на сервер с таймаутом пакета
func (e *Engine) acknowledge(ctx context.Context, operationID string, resolution models.Resolution) error {
	ackCtx, cancel := context.WithTimeout(ctx, e.cfg.BatchTimeout)
	defer cancel()

	resp, err := e.server.Resolve(ackCtx, api.ResolveRequest{
		OperationID: operationID,
		Resolution:  resolution,
		DeviceID:    e.log.DeviceID(),
	})
	if err != nil {
		return fmt.Errorf("failed to acknowledge resolution: %w", err)
	}
	if !resp.Acknowledged {
		return fmt.Errorf("server did not acknowledge resolution of %s", operationID)
	}
	return nil
}

// applyResolution local_wins возвращает операцию в очередь, remote_wins удаляет ее
func (e *Engine) applyResolution(ctx context.Context, operationID string, resolution models.Resolution) error {
	switch resolution {
	case models.ResolutionLocalWins:
		if err := e.log.Requeue(ctx, operationID); err != nil {
			return fmt.Errorf("failed to requeue operation: %w", err)
		}
	case models.ResolutionRemoteWins:
		if err := e.log.Remove(ctx, operationID); err != nil {
			return fmt.Errorf("failed to drop operation: %w", err)
		}
	}
	return nil
}
