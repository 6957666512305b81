package storage

import "context"

// Transactor is implemented by storages that can group calls into one
// transaction. Storage calls made with the context passed to fn join it;
// the transaction commits when fn returns nil and rolls back otherwise.
type Transactor interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}
