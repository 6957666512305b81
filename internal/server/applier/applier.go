// Package applier holds the entity appliers the reconciliation service
// dispatches accepted operations to, one per entity type.
package applier

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/iudanet/opsync/internal/models"
)

var (
	// ErrUnknownEntityType indicates that no applier is registered for the type
	ErrUnknownEntityType = errors.New("unknown entity type")

	// ErrInvalidPayload indicates that the payload violates the entity schema
	ErrInvalidPayload = errors.New("invalid payload")

	// ErrEntityNotFound indicates an update of an entity that does not exist
	ErrEntityNotFound = errors.New("entity not found")
)

//go:generate moq -out applier_mock.go . Applier

// Applier mutates authoritative state for one entity type.
// Apply must be idempotent by operation id: applying the same operation
// twice changes state once. The reconciliation service runs Apply and the
// accepted-operation record in one storage transaction when the storage
// supports it; otherwise a failed record leaves the change applied and the
// resend relies on this idempotency.
type Applier interface {
	Apply(ctx context.Context, op *models.Operation) error
}

// ApplierFunc adapts a function to the Applier interface
type ApplierFunc func(ctx context.Context, op *models.Operation) error

// Apply calls f(ctx, op)
func (f ApplierFunc) Apply(ctx context.Context, op *models.Operation) error {
	return f(ctx, op)
}

// ApplierError - бизнес-правило сущности отклонило операцию.
// Повторяемая ошибка, но может указывать на "ядовитую" операцию.
type ApplierError struct {
	Err         error
	EntityType  string
	OperationID string
}

func (e *ApplierError) Error() string {
	return fmt.Sprintf("%s applier rejected operation %s: %v", e.EntityType, e.OperationID, e.Err)
}

func (e *ApplierError) Unwrap() error {
	return e.Err
}

// Registry maps entity types to appliers
type Registry struct {
	appliers map[string]Applier
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{appliers: make(map[string]Applier)}
}

// Register adds or replaces the applier of an entity type
func (r *Registry) Register(entityType string, a Applier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appliers[entityType] = a
}

// Lookup returns the applier of an entity type
func (r *Registry) Lookup(entityType string) (Applier, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.appliers[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEntityType, entityType)
	}
	return a, nil
}

// Types returns the registered entity types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.appliers))
	for t := range r.appliers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
