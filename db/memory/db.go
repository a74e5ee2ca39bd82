package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/NethermindEth/stark-state/db"
)

var _ db.Storage = (*Database)(nil)

// Database is an in-memory fact store. It is safe for concurrent use.
type Database struct {
	db   map[string][]byte
	lock sync.RWMutex
}

func New() *Database {
	return &Database{
		db: make(map[string][]byte),
	}
}

func (d *Database) Get(_ context.Context, key []byte) ([]byte, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return nil, db.ErrClosed
	}

	val, ok := d.db[string(key)]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return slices.Clone(val), nil
}

func (d *Database) GetMany(_ context.Context, keys [][]byte) (map[string][]byte, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	if d.db == nil {
		return nil, db.ErrClosed
	}

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if val, ok := d.db[string(key)]; ok {
			result[string(key)] = slices.Clone(val)
		}
	}
	return result, nil
}

func (d *Database) Put(_ context.Context, key, value []byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return db.ErrClosed
	}

	d.db[string(key)] = slices.Clone(value)
	return nil
}

func (d *Database) PutMany(_ context.Context, entries map[string][]byte) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if d.db == nil {
		return db.ErrClosed
	}

	for key, value := range entries {
		d.db[key] = slices.Clone(value)
	}
	return nil
}

// Len returns the number of stored entries.
func (d *Database) Len() int {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return len(d.db)
}

// Snapshot returns a copy of the stored entries.
func (d *Database) Snapshot() map[string][]byte {
	d.lock.RLock()
	defer d.lock.RUnlock()
	return maps.Clone(d.db)
}

func (d *Database) Close() error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.db = nil
	return nil
}
