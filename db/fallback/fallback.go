// Package fallback composes a local fact store with a slower source that is consulted for
// facts the local store lacks. Facts found in the fallback are copied into the local store.
// Keys outside the content-addressed buckets, such as the state header, are only ever read
// from the local store.
package fallback

import (
	"context"
	"errors"
	"fmt"

	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/utils"
)

var _ db.Storage = (*Storage)(nil)

// Storage writes only to the local store. It is safe for concurrent use when both stores are.
type Storage struct {
	local    db.Storage
	fallback db.Storage
	log      utils.SimpleLogger
}

func New(local, fallback db.Storage, log utils.SimpleLogger) *Storage {
	return &Storage{local: local, fallback: fallback, log: log}
}

func isFact(key []byte) bool {
	return len(key) > 0 && db.Bucket(key[0]).ContentAddressed()
}

func (s *Storage) Get(ctx context.Context, key []byte) ([]byte, error) {
	val, err := s.local.Get(ctx, key)
	if !errors.Is(err, db.ErrKeyNotFound) || !isFact(key) {
		return val, err
	}

	val, err = s.fallback.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if err = s.local.Put(ctx, key, val); err != nil {
		return nil, fmt.Errorf("store fetched fact: %w", err)
	}
	return val, nil
}

func (s *Storage) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	result, err := s.local.GetMany(ctx, keys)
	if err != nil {
		return nil, err
	}

	var misses [][]byte
	for _, key := range keys {
		if _, ok := result[string(key)]; !ok && isFact(key) {
			misses = append(misses, key)
		}
	}
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := s.fallback.GetMany(ctx, misses)
	if err != nil {
		return nil, err
	}
	if len(fetched) > 0 {
		s.log.Debugw("Fetched facts from fallback storage", "requested", len(misses), "found", len(fetched))
		if err = s.local.PutMany(ctx, fetched); err != nil {
			return nil, fmt.Errorf("store fetched facts: %w", err)
		}
	}
	for key, val := range fetched {
		result[key] = val
	}
	return result, nil
}

func (s *Storage) Put(ctx context.Context, key, value []byte) error {
	return s.local.Put(ctx, key, value)
}

func (s *Storage) PutMany(ctx context.Context, entries map[string][]byte) error {
	return s.local.PutMany(ctx, entries)
}

func (s *Storage) Close() error {
	return errors.Join(s.local.Close(), s.fallback.Close())
}
