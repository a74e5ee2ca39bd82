package pebble

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/NethermindEth/stark-state/db"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

var _ db.Storage = (*DB)(nil)

// DB is a fact store backed by pebble. Pebble handles concurrent readers and writers, so DB is
// safe for concurrent use.
type DB struct {
	pebble *pebble.DB
}

// New opens a new database at the given path
func New(path string, options ...Option) (*DB, error) {
	opts := &pebble.Options{}
	for _, option := range options {
		if err := option(opts); err != nil {
			return nil, err
		}
	}
	return newPebble(path, opts)
}

// NewMem opens a new in-memory database
func NewMem(options ...Option) (*DB, error) {
	return New("", append([]Option{func(opts *pebble.Options) error {
		opts.FS = vfs.NewMem()
		return nil
	}}, options...)...)
}

func newPebble(path string, options *pebble.Options) (*DB, error) {
	pDB, err := pebble.Open(path, options)
	if err != nil {
		return nil, fmt.Errorf("open pebble at %q: %w", path, err)
	}
	return &DB{pebble: pDB}, nil
}

func (d *DB) Get(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.get(key)
}

func (d *DB) get(key []byte) ([]byte, error) {
	val, closer, err := d.pebble.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, db.ErrKeyNotFound
		}
		return nil, err
	}
	defer closer.Close()
	return slices.Clone(val), nil
}

func (d *DB) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	snapshot := d.pebble.NewSnapshot()
	defer snapshot.Close()

	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		val, closer, err := snapshot.Get(key)
		if errors.Is(err, pebble.ErrNotFound) {
			continue
		} else if err != nil {
			return nil, err
		}
		result[string(key)] = slices.Clone(val)
		if err = closer.Close(); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (d *DB) Put(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.pebble.Set(key, value, pebble.Sync)
}

func (d *DB) PutMany(ctx context.Context, entries map[string][]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	batch := d.pebble.NewBatch()
	defer batch.Close()
	for key, value := range entries {
		if err := batch.Set([]byte(key), value, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}

// Close : see io.Closer.Close
func (d *DB) Close() error {
	return d.pebble.Close()
}

// Impl returns the underlying pebble handle.
func (d *DB) Impl() *pebble.DB {
	return d.pebble
}
