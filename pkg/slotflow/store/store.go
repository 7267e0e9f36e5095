// Package store persists conversation records between turns. A record
// is loaded at the start of a step and written back only after the
// step completes, so a crashed step never leaves a half-updated
// conversation behind.
package store

import (
	"context"
	"errors"

	"github.com/rsharan/slotflow/pkg/slotflow/state"
)

var (
	// ErrNotFound is returned when no record exists for the key.
	ErrNotFound = errors.New("conversation not found")

	// ErrStoreClosed is returned on use after Close.
	ErrStoreClosed = errors.New("store is closed")
)

// Store is the persistence contract for conversation records.
// Implementations must be safe for concurrent use; serialization of
// load-step-save cycles per conversation key is the session layer's
// job, not the store's.
type Store interface {
	// Load returns the record for the key, or ErrNotFound.
	Load(ctx context.Context, key string) (*state.Record, error)

	// Save writes the record, replacing any previous version.
	Save(ctx context.Context, rec *state.Record) error

	// Delete removes the record. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the known conversation keys.
	List(ctx context.Context) ([]string, error)

	// Close releases resources. The store is unusable afterwards.
	Close() error
}
