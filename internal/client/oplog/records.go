package oplog

import (
	"context"
	"errors"
	"time"

	"github.com/iudanet/opsync/internal/client/storage"
	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
)

// ErrConflictNotFound indicates that there is no open conflict for the operation
var ErrConflictNotFound = errors.New("open conflict not found")

// Hold keeps the event in the log but excludes it from batches until
// the conflict is decided. The conflict record is appended in the same write.
func (l *Log) Hold(ctx context.Context, record *models.ConflictRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(s *storage.State) error {
		ev := findEvent(s.OperationLog, record.OperationID)
		if ev == nil {
			return ErrOperationNotFound
		}
		ev.Held = true
		ev.Status = models.StatusPending
		s.Conflicts = append(s.Conflicts, cloneConflict(record))
		return nil
	})
}

// OpenConflict returns a copy of the open conflict for the operation
func (l *Log) OpenConflict(operationID string) (*models.ConflictRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.state.Conflicts {
		if c.OperationID == operationID && c.IsOpen() {
			return cloneConflict(c), nil
		}
	}
	return nil, ErrConflictNotFound
}

// CloseConflict marks the open conflict of the operation as resolved
func (l *Log) CloseConflict(ctx context.Context, operationID string, resolution models.Resolution) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	return l.update(ctx, func(s *storage.State) error {
		for _, c := range s.Conflicts {
			if c.OperationID == operationID && c.IsOpen() {
				c.Resolution = resolution
				c.ResolvedAt = &now
				return nil
			}
		}
		return ErrConflictNotFound
	})
}

// RecordConflict appends an already-decided conflict for the audit trail
func (l *Log) RecordConflict(ctx context.Context, record *models.ConflictRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(s *storage.State) error {
		s.Conflicts = append(s.Conflicts, cloneConflict(record))
		return nil
	})
}

// Conflicts returns copies of all conflict records; with openOnly only
// those still waiting for a decision
func (l *Log) Conflicts(openOnly bool) []*models.ConflictRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]*models.ConflictRecord, 0, len(l.state.Conflicts))
	for _, c := range l.state.Conflicts {
		if openOnly && !c.IsOpen() {
			continue
		}
		result = append(result, cloneConflict(c))
	}
	return result
}

// Lost returns copies of operations evicted after exhausting their retries
func (l *Log) Lost() []*models.LostOperation {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]*models.LostOperation, 0, len(l.state.Lost))
	for _, lo := range l.state.Lost {
		clone := *lo
		clone.Operation = lo.Operation.Clone()
		result = append(result, &clone)
	}
	return result
}

// AcknowledgeLost drops lost-operation records once the user has seen them.
// An empty id list acknowledges all of them.
func (l *Log) AcknowledgeLost(ctx context.Context, operationIDs ...string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	drop := make(map[string]struct{}, len(operationIDs))
	for _, id := range operationIDs {
		drop[id] = struct{}{}
	}

	removed := 0
	err := l.update(ctx, func(s *storage.State) error {
		kept := s.Lost[:0]
		for _, lo := range s.Lost {
			if _, ok := drop[lo.Operation.ID]; ok || len(drop) == 0 {
				removed++
				continue
			}
			kept = append(kept, lo)
		}
		s.Lost = kept
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Observe merges a remote operation's vector clock into the observed clock,
// so that operations created afterwards causally follow it.
func (l *Log) Observe(ctx context.Context, remote crdt.VectorClock) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(s *storage.State) error {
		if s.ObservedClock == nil {
			s.ObservedClock = crdt.VectorClock{}
		}
		for device, counter := range remote {
			// Собственный счетчик не храним: он всегда равен времени создания
			if device == s.DeviceID {
				continue
			}
			if counter > s.ObservedClock[device] {
				s.ObservedClock[device] = counter
			}
		}
		return nil
	})
}

// SetLastSyncAt records completion time of the last sync cycle
func (l *Log) SetLastSyncAt(ctx context.Context, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.update(ctx, func(s *storage.State) error {
		s.LastSyncAt = &at
		return nil
	})
}

// LastSyncAt returns the completion time of the last sync cycle, nil if never synced
func (l *Log) LastSyncAt() *time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state.LastSyncAt == nil {
		return nil
	}
	t := *l.state.LastSyncAt
	return &t
}

func cloneConflict(c *models.ConflictRecord) *models.ConflictRecord {
	clone := *c
	if c.LocalOperation != nil {
		clone.LocalOperation = c.LocalOperation.Clone()
	}
	if c.RemoteOperation != nil {
		clone.RemoteOperation = c.RemoteOperation.Clone()
	}
	if c.ResolvedAt != nil {
		t := *c.ResolvedAt
		clone.ResolvedAt = &t
	}
	return &clone
}

// cloneState глубокая копия состояния для транзакционного обновления
func cloneState(s *storage.State) *storage.State {
	next := &storage.State{
		DeviceID:      s.DeviceID,
		ObservedClock: s.ObservedClock.Clone(),
		OperationLog:  make([]*models.SyncEvent, 0, len(s.OperationLog)+1),
		Conflicts:     make([]*models.ConflictRecord, 0, len(s.Conflicts)),
		Lost:          make([]*models.LostOperation, 0, len(s.Lost)),
	}
	if s.LastSyncAt != nil {
		t := *s.LastSyncAt
		next.LastSyncAt = &t
	}
	for _, ev := range s.OperationLog {
		next.OperationLog = append(next.OperationLog, ev.Clone())
	}
	for _, c := range s.Conflicts {
		next.Conflicts = append(next.Conflicts, cloneConflict(c))
	}
	for _, lo := range s.Lost {
		clone := *lo
		clone.Operation = lo.Operation.Clone()
		next.Lost = append(next.Lost, &clone)
	}
	return next
}
