// Package kv is the durable key/value layer behind the page cache.
//
// Two kinds of keys live in a store: the fixed manifest key ("pages") and
// content hashes, each holding one immutable rendered HTML fragment. Every
// operation runs in its own transaction; there is no cross-key locking.
package kv

import (
	"context"
	"errors"
)

var (
	// ErrStore marks a failed transaction.
	ErrStore = errors.New("store failure")
	// ErrInit marks a store whose initial open failed.
	ErrInit = errors.New("store initialization failed")
)

// Store is the contract every backend implements.
type Store interface {
	// Get returns the value for key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set writes value under key. A nil value deletes the key.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}
