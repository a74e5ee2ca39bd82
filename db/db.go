package db

import "context"

//go:generate mockgen -destination=../mocks/mock_storage.go -package=mocks github.com/NethermindEth/stark-state/db Storage

// Storage is a content-addressed key-value store. Keys are a bucket prefix followed by a fact
// hash, so a key is written once and never rewritten with different bytes. There is no delete.
//
// Implementations must be safe for concurrent use.
type Storage interface {
	// Get returns the value stored under key or ErrKeyNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// GetMany returns the values of every key that exists. Missing keys are omitted from the
	// result rather than reported as errors.
	GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error)
	Put(ctx context.Context, key, value []byte) error
	// PutMany writes all entries atomically where the backend supports it.
	PutMany(ctx context.Context, entries map[string][]byte) error
	Close() error
}
