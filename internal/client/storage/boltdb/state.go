package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/iudanet/opsync/internal/client/storage"
)

const (
	// keyEngineState фиксированный ключ единственной записи состояния
	keyEngineState = "opsync/engine_state"
)

// SaveState serializes the whole engine state and replaces the stored record
// in a single bbolt transaction.
func (s *Storage) SaveState(ctx context.Context, state *storage.State) error {
	if s.db == nil {
		return storage.ErrStorageClosed
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal engine state: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketState)
		if bucket == nil {
			return fmt.Errorf("state bucket not found")
		}

		if err := bucket.Put([]byte(keyEngineState), data); err != nil {
			return fmt.Errorf("failed to save engine state: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}

	return nil
}

// LoadState reads the stored engine state
// Returns storage.ErrStateNotFound on a fresh database
func (s *Storage) LoadState(ctx context.Context) (*storage.State, error) {
	if s.db == nil {
		return nil, storage.ErrStorageClosed
	}

	var state *storage.State

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketState)
		if bucket == nil {
			return storage.ErrStateNotFound
		}

		data := bucket.Get([]byte(keyEngineState))
		if data == nil {
			return storage.ErrStateNotFound
		}

		// data валиден только внутри транзакции, Unmarshal копирует его
		state = &storage.State{}
		if err := json.Unmarshal(data, state); err != nil {
			return fmt.Errorf("failed to unmarshal engine state: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return state, nil
}
