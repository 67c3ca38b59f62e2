// Package storage defines the key-value surface the card repository persists
// through, plus the change feed used to resync other processes or sessions.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// DefaultKey is the well-known key holding the serialized card collection.
const DefaultKey = "share-car.cards"

// Storage reads and writes opaque values by key.
// Load returns (nil, nil) when the key has never been written.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Close() error
}

// Change is emitted when another writer saved a key.
type Change struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
}

// Watcher delivers changes made by other writers to fn until stop is called
// or ctx is done. A backend never reports its own writes.
type Watcher interface {
	Watch(ctx context.Context, fn func(Change)) (stop func(), err error)
}

// Backend is a storage that can also report foreign writes.
type Backend interface {
	Storage
	Watcher
}

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("storage: closed")

// NewOrigin returns a unique writer identity used to suppress self echoes.
func NewOrigin() string { return uuid.NewString() }
