// Package storage defines the persistent key/value capability the vault
// writes through, standing in for the browser-local store of the original
// admin panel. Backends live in subpackages.
//
// Known limitation: two processes sharing the same backing store (like two
// tabs sharing local storage) race with last-writer-wins semantics. Each
// logical record is always rewritten whole, so a lost update is a stale
// collection, never a torn one. Nothing here arbitrates between processes.
package storage

import "context"

// KV is a minimal persistent key/value store.
type KV interface {
	// Get returns the value stored under key, or errs.ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
