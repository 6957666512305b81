// Package conflict decides how a suspected conflict between a local
// operation and a remote one already accepted by the server is resolved.
//
// Detection happens on the server (time window); this package only
// classifies the pair and picks local_wins, remote_wins or pending_manual
// according to the configured strategy.
package conflict

import (
	"fmt"

	"github.com/iudanet/opsync/internal/crdt"
	"github.com/iudanet/opsync/internal/models"
)

// Strategy стратегия автоматического разрешения
type Strategy string

const (
	// StrategyLastWriteWins - побеждает более поздний createdAt, ничья - вручную
	StrategyLastWriteWins Strategy = "last_write_wins"
	// StrategyVectorClock - решение по сравнению векторных часов
	StrategyVectorClock Strategy = "vector_clock"
	// StrategyManual - все конфликты решает человек
	StrategyManual Strategy = "manual"
)

// Resolver applies one configured strategy to every conflict
type Resolver struct {
	strategy Strategy
}

// NewResolver creates a resolver. Unrecognized strategies resolve everything manually.
func NewResolver(strategy Strategy) *Resolver {
	return &Resolver{strategy: strategy}
}

// ParseStrategy validates a strategy name from config or flags
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyLastWriteWins, StrategyVectorClock, StrategyManual:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown conflict strategy %q", s)
	}
}

// Strategy returns the configured strategy
func (r *Resolver) Strategy() Strategy {
	return r.strategy
}

// Classify determines the conflict kind of a local/remote pair
func Classify(local, remote *models.Operation) models.ConflictKind {
	switch {
	case local.Kind == models.KindDelete && remote.Kind == models.KindUpdate,
		local.Kind == models.KindUpdate && remote.Kind == models.KindDelete:
		return models.ConflictDeleteUpdate
	case local.Kind == models.KindCreate && remote.Kind == models.KindCreate && local.EntityID == remote.EntityID:
		return models.ConflictCreateDuplicate
	default:
		return models.ConflictConcurrentUpdate
	}
}

// Decide picks the resolution for a conflicting pair
func (r *Resolver) Decide(local, remote *models.Operation) models.Resolution {
	switch r.strategy {
	case StrategyLastWriteWins:
		switch {
		case local.CreatedAt > remote.CreatedAt:
			return models.ResolutionLocalWins
		case local.CreatedAt < remote.CreatedAt:
			return models.ResolutionRemoteWins
		default:
			return models.ResolutionPendingManual
		}

	case StrategyVectorClock:
		switch crdt.Compare(local.VectorClock, remote.VectorClock) {
		case crdt.Before:
			// Локальная операция устарела: удаленная уже применена
			return models.ResolutionRemoteWins
		case crdt.After:
			return models.ResolutionLocalWins
		default:
			return models.ResolutionPendingManual
		}

	default:
		return models.ResolutionPendingManual
	}
}
