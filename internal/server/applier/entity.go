package applier

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/iudanet/opsync/internal/models"
	"github.com/iudanet/opsync/internal/server/storage"
)

//go:embed schemas/*.json
var embedSchemas embed.FS

// EntityApplier stores operations of one entity type as rows in the
// entity table. Create replaces the document, update merges top-level
// fields into it, delete leaves a tombstone. The resulting document is
// validated against the type's JSON schema before it is written.
type EntityApplier struct {
	store      storage.EntityStorage
	schema     *jsonschema.Schema
	logger     *slog.Logger
	now        func() time.Time
	entityType string
}

// NewEntityApplier creates an applier. A nil schema disables validation.
func NewEntityApplier(entityType string, store storage.EntityStorage, schema *jsonschema.Schema, logger *slog.Logger) *EntityApplier {
	return &EntityApplier{
		entityType: entityType,
		store:      store,
		schema:     schema,
		logger:     logger,
		now:        time.Now,
	}
}

// Apply implements Applier
func (a *EntityApplier) Apply(ctx context.Context, op *models.Operation) error {
	if op.EntityType != a.entityType {
		return fmt.Errorf("%s applier received %q operation", a.entityType, op.EntityType)
	}

	existing, err := a.store.GetEntity(ctx, op.EntityType, op.EntityID)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return fmt.Errorf("failed to load entity: %w", err)
	}

	// Повтор уже примененной операции
	if existing != nil && existing.LastOperationID == op.ID {
		a.logger.Debug("Operation already applied", "operation_id", op.ID, "entity_id", op.EntityID)
		return nil
	}

	now := a.now().UTC()
	next := &models.Entity{
		EntityType:      op.EntityType,
		EntityID:        op.EntityID,
		LastOperationID: op.ID,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if existing != nil {
		next.Version = existing.Version + 1
		next.CreatedAt = existing.CreatedAt
	}

	switch op.Kind {
	case models.KindCreate:
		next.Payload = op.Payload

	case models.KindUpdate:
		if existing == nil || existing.Deleted {
			return a.reject(op, ErrEntityNotFound)
		}
		merged, err := mergePayload(existing.Payload, op.Payload)
		if err != nil {
			return a.reject(op, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
		}
		next.Payload = merged

	case models.KindDelete:
		next.Deleted = true
		if existing != nil {
			next.Payload = existing.Payload
		}

	default:
		return a.reject(op, fmt.Errorf("unsupported operation kind %q", op.Kind))
	}

	if !next.Deleted {
		if err := a.validate(next.Payload); err != nil {
			return a.reject(op, err)
		}
	}

	if err := a.store.SaveEntity(ctx, next); err != nil {
		return fmt.Errorf("failed to save entity: %w", err)
	}

	a.logger.Debug("Operation applied",
		"operation_id", op.ID,
		"entity_type", op.EntityType,
		"entity_id", op.EntityID,
		"kind", op.Kind,
		"version", next.Version)

	return nil
}

func (a *EntityApplier) reject(op *models.Operation, err error) error {
	return &ApplierError{EntityType: a.entityType, OperationID: op.ID, Err: err}
}

func (a *EntityApplier) validate(payload json.RawMessage) error {
	if a.schema == nil {
		return nil
	}
	if len(payload) == 0 {
		return fmt.Errorf("%w: payload is required", ErrInvalidPayload)
	}

	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := a.schema.Validate(inst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// mergePayload накладывает поля patch верхнего уровня на base
func mergePayload(base, patch json.RawMessage) (json.RawMessage, error) {
	if len(patch) == 0 {
		return base, nil
	}

	doc := make(map[string]json.RawMessage)
	if len(base) > 0 {
		if err := json.Unmarshal(base, &doc); err != nil {
			return nil, fmt.Errorf("stored payload is not an object: %w", err)
		}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(patch, &fields); err != nil {
		return nil, fmt.Errorf("update payload is not an object: %w", err)
	}
	for k, v := range fields {
		doc[k] = v
	}

	merged, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return merged, nil
}

// LoadSchema compiles the bundled JSON schema of an entity type
func LoadSchema(entityType string) (*jsonschema.Schema, error) {
	name := "schemas/" + entityType + ".json"

	data, err := embedSchemas.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("no schema for %q: %w", entityType, err)
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", name, err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema %s: %w", name, err)
	}

	schema, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
	}
	return schema, nil
}

// NewDefaultRegistry registers SQL-backed appliers for products, inventory,
// orders and shipments
func NewDefaultRegistry(store storage.EntityStorage, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry()

	for _, entityType := range []string{
		models.EntityProducts,
		models.EntityInventory,
		models.EntityOrders,
		models.EntityShipments,
	} {
		schema, err := LoadSchema(entityType)
		if err != nil {
			return nil, err
		}
		r.Register(entityType, NewEntityApplier(entityType, store, schema, logger.With("applier", entityType)))
	}

	return r, nil
}
