// Package fact defines content-addressed facts and the context used to fetch and store them.
package fact

import (
	"context"
	"errors"

	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/db"
)

// Fact is a value stored under Bucket() followed by its hash. Equal facts have equal hashes and
// equal encodings.
type Fact interface {
	Bucket() db.Bucket
	Hash(hash crypto.HashFunc) *felt.Felt
	MarshalBinary() ([]byte, error)
}

// Leaf is a fact that can sit at the bottom of a tree. The empty leaf hashes to zero so that
// empty subtrees never touch storage.
type Leaf[L any] interface {
	Fact
	IsEmpty() bool
	// Empty returns the default value of this leaf type.
	Empty() L
	// Decode parses the encoding produced by MarshalBinary.
	Decode(data []byte) (L, error)
}

// Context is the fact-fetching context: a storage backend and the hash function used for tree
// nodes. It holds no cache and is safe to share between goroutines when the storage is.
type Context struct {
	storage db.Storage
	hash    crypto.HashFunc
}

func NewContext(storage db.Storage, hash crypto.HashFunc) *Context {
	return &Context{storage: storage, hash: hash}
}

// WithHash returns a context over the same storage that hashes nodes with hash.
func (c *Context) WithHash(hash crypto.HashFunc) *Context {
	return &Context{storage: c.storage, hash: hash}
}

func (c *Context) Storage() db.Storage {
	return c.storage
}

func (c *Context) Hash(a, b *felt.Felt) *felt.Felt {
	return c.hash(a, b)
}

func (c *Context) HashFunc() crypto.HashFunc {
	return c.hash
}

func Key(bucket db.Bucket, hash *felt.Felt) []byte {
	b := hash.Bytes()
	return bucket.Key(b[:])
}

// Get returns the preimage stored for hash in bucket.
func (c *Context) Get(ctx context.Context, bucket db.Bucket, hash *felt.Felt) ([]byte, error) {
	key := Key(bucket, hash)
	val, err := c.storage.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, &MissingFactError{Bucket: bucket, Hash: *hash}
		}
		return nil, &StorageError{Op: "get", Err: err}
	}
	return val, nil
}

// GetMany fetches all keys in one storage round trip. Missing keys are absent from the result.
func (c *Context) GetMany(ctx context.Context, keys [][]byte) (map[string][]byte, error) {
	vals, err := c.storage.GetMany(ctx, keys)
	if err != nil {
		return nil, &StorageError{Op: "get_many", Err: err}
	}
	return vals, nil
}

func (c *Context) PutMany(ctx context.Context, entries map[string][]byte) error {
	if len(entries) == 0 {
		return nil
	}
	if err := c.storage.PutMany(ctx, entries); err != nil {
		return &StorageError{Op: "put_many", Err: err}
	}
	return nil
}

// Set stores f and returns its hash.
func (c *Context) Set(ctx context.Context, f Fact) (*felt.Felt, error) {
	hash := f.Hash(c.hash)
	data, err := f.MarshalBinary()
	if err != nil {
		return nil, err
	}
	if err = c.storage.Put(ctx, Key(f.Bucket(), hash), data); err != nil {
		return nil, &StorageError{Op: "put", Err: err}
	}
	return hash, nil
}

// Entry adds f to a pending write set and returns its hash.
func (c *Context) Entry(entries map[string][]byte, f Fact) (*felt.Felt, error) {
	hash := f.Hash(c.hash)
	data, err := f.MarshalBinary()
	if err != nil {
		return nil, err
	}
	entries[string(Key(f.Bucket(), hash))] = data
	return hash, nil
}

// GetLeaf reads the leaf stored under hash. The zero hash is the empty leaf and is never
// looked up.
func GetLeaf[L Leaf[L]](ctx context.Context, c *Context, hash *felt.Felt) (L, error) {
	var leaf L
	if hash.IsZero() {
		return leaf.Empty(), nil
	}

	data, err := c.Get(ctx, leaf.Bucket(), hash)
	if err != nil {
		return leaf, err
	}
	return DecodeLeaf[L](leaf.Bucket(), hash, data)
}

// DecodeLeaf wraps decoding failures in a DecodeError.
func DecodeLeaf[L Leaf[L]](bucket db.Bucket, hash *felt.Felt, data []byte) (L, error) {
	var zero L
	leaf, err := zero.Decode(data)
	if err != nil {
		return zero, &DecodeError{Bucket: bucket, Hash: *hash, Err: err}
	}
	return leaf, nil
}
