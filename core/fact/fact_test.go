package fact_test

import (
	"context"
	"errors"
	"testing"

	"github.com/NethermindEth/stark-state/core/crypto"
	"github.com/NethermindEth/stark-state/core/fact"
	"github.com/NethermindEth/stark-state/core/felt"
	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/db/memory"
	"github.com/NethermindEth/stark-state/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type valueLeaf struct {
	value felt.Felt
}

func (valueLeaf) Bucket() db.Bucket { return db.StorageLeaf }
func (l valueLeaf) Hash(crypto.HashFunc) *felt.Felt { return &l.value }
func (l valueLeaf) MarshalBinary() ([]byte, error) { return l.value.Marshal(), nil }
func (l valueLeaf) IsEmpty() bool { return l.value.IsZero() }
func (valueLeaf) Empty() valueLeaf { return valueLeaf{} }
func (valueLeaf) Decode(data []byte) (valueLeaf, error) {
	if len(data) != felt.Bytes {
		return valueLeaf{}, errors.New("bad length")
	}
	return valueLeaf{value: *felt.FromBytes(data)}, nil
}

func TestContext(t *testing.T) {
	ctx := context.Background()

	t.Run("set then get leaf", func(t *testing.T) {
		ffc := fact.NewContext(memory.New(), crypto.Pedersen)
		hash, err := ffc.Set(ctx, valueLeaf{value: *felt.FromUint64(7)})
		require.NoError(t, err)
		assert.Equal(t, felt.FromUint64(7), hash)

		leaf, err := fact.GetLeaf[valueLeaf](ctx, ffc, hash)
		require.NoError(t, err)
		assert.Equal(t, valueLeaf{value: *felt.FromUint64(7)}, leaf)
	})

	t.Run("zero hash is the empty leaf", func(t *testing.T) {
		mockCtrl := gomock.NewController(t)
		ffc := fact.NewContext(mocks.NewMockStorage(mockCtrl), crypto.Pedersen)

		leaf, err := fact.GetLeaf[valueLeaf](ctx, ffc, &felt.Zero)
		require.NoError(t, err)
		assert.True(t, leaf.IsEmpty())
	})

	t.Run("missing fact", func(t *testing.T) {
		ffc := fact.NewContext(memory.New(), crypto.Pedersen)
		_, err := fact.GetLeaf[valueLeaf](ctx, ffc, felt.FromUint64(9))

		var missing *fact.MissingFactError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, db.StorageLeaf, missing.Bucket)
		assert.Equal(t, *felt.FromUint64(9), missing.Hash)
		require.ErrorIs(t, err, db.ErrKeyNotFound)
	})

	t.Run("corrupt fact", func(t *testing.T) {
		storage := memory.New()
		hash := felt.FromUint64(9)
		require.NoError(t, storage.Put(ctx, fact.Key(db.StorageLeaf, hash), []byte{1, 2, 3}))

		_, err := fact.GetLeaf[valueLeaf](ctx, fact.NewContext(storage, crypto.Pedersen), hash)
		var decodeErr *fact.DecodeError
		require.ErrorAs(t, err, &decodeErr)
		assert.Equal(t, *hash, decodeErr.Hash)
	})

	t.Run("storage failure", func(t *testing.T) {
		mockCtrl := gomock.NewController(t)
		storage := mocks.NewMockStorage(mockCtrl)
		ffc := fact.NewContext(storage, crypto.Pedersen)
		boom := errors.New("boom")

		storage.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, boom)
		_, err := ffc.Get(ctx, db.PatriciaNode, felt.FromUint64(1))
		var storageErr *fact.StorageError
		require.ErrorAs(t, err, &storageErr)
		require.ErrorIs(t, err, boom)

		storage.EXPECT().GetMany(gomock.Any(), gomock.Any()).Return(nil, boom)
		_, err = ffc.GetMany(ctx, [][]byte{{1}})
		require.ErrorAs(t, err, &storageErr)

		storage.EXPECT().PutMany(gomock.Any(), gomock.Any()).Return(boom)
		require.ErrorAs(t, ffc.PutMany(ctx, map[string][]byte{"a": {1}}), &storageErr)

		storage.EXPECT().Put(gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)
		_, err = ffc.Set(ctx, valueLeaf{value: *felt.FromUint64(1)})
		require.ErrorAs(t, err, &storageErr)
	})

	t.Run("empty put many skips storage", func(t *testing.T) {
		mockCtrl := gomock.NewController(t)
		ffc := fact.NewContext(mocks.NewMockStorage(mockCtrl), crypto.Pedersen)
		require.NoError(t, ffc.PutMany(ctx, map[string][]byte{}))
	})

	t.Run("with hash keeps storage", func(t *testing.T) {
		storage := memory.New()
		ffc := fact.NewContext(storage, crypto.Pedersen)
		poseidon := ffc.WithHash(crypto.Poseidon)

		a, b := felt.FromUint64(1), felt.FromUint64(2)
		assert.Equal(t, crypto.Pedersen(a, b), ffc.Hash(a, b))
		assert.Equal(t, crypto.Poseidon(a, b), poseidon.Hash(a, b))
		assert.Same(t, ffc.Storage(), poseidon.Storage())
	})

	t.Run("entry collects writes", func(t *testing.T) {
		ffc := fact.NewContext(memory.New(), crypto.Pedersen)
		entries := make(map[string][]byte)
		hash, err := ffc.Entry(entries, valueLeaf{value: *felt.FromUint64(3)})
		require.NoError(t, err)
		assert.Equal(t, felt.FromUint64(3).Marshal(), entries[string(fact.Key(db.StorageLeaf, hash))])
	})
}
