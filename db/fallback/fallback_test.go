package fallback_test

import (
	"context"
	"testing"

	"github.com/NethermindEth/stark-state/db"
	"github.com/NethermindEth/stark-state/db/fallback"
	"github.com/NethermindEth/stark-state/db/memory"
	"github.com/NethermindEth/stark-state/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func key(name string) []byte {
	return db.PatriciaNode.Key([]byte(name))
}

func TestFallbackStorage(t *testing.T) {
	ctx := context.Background()
	header := db.StateHeader.Key([]byte("latest"))

	newStores := func(t *testing.T) (*memory.Database, *memory.Database, *fallback.Storage) {
		t.Helper()
		local, remote := memory.New(), memory.New()
		require.NoError(t, remote.PutMany(ctx, map[string][]byte{
			string(key("a")): {1},
			string(key("b")): {2},
			string(header):   {9},
		}))
		require.NoError(t, local.Put(ctx, key("c"), []byte{3}))
		return local, remote, fallback.New(local, remote, utils.NewNopLogger())
	}

	t.Run("get copies fetched fact locally", func(t *testing.T) {
		local, _, storage := newStores(t)
		val, err := storage.Get(ctx, key("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, val)

		val, err = local.Get(ctx, key("a"))
		require.NoError(t, err)
		assert.Equal(t, []byte{1}, val)
	})

	t.Run("missing everywhere", func(t *testing.T) {
		_, _, storage := newStores(t)
		_, err := storage.Get(ctx, key("z"))
		require.ErrorIs(t, err, db.ErrKeyNotFound)
	})

	t.Run("get many merges both stores", func(t *testing.T) {
		local, _, storage := newStores(t)
		got, err := storage.GetMany(ctx, [][]byte{key("a"), key("c"), key("z")})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{string(key("a")): {1}, string(key("c")): {3}}, got)
		assert.Equal(t, 2, local.Len())
	})

	t.Run("state header is never read from the fallback", func(t *testing.T) {
		local, _, storage := newStores(t)
		_, err := storage.Get(ctx, header)
		require.ErrorIs(t, err, db.ErrKeyNotFound)

		got, err := storage.GetMany(ctx, [][]byte{header, key("b")})
		require.NoError(t, err)
		assert.Equal(t, map[string][]byte{string(key("b")): {2}}, got)
		_, err = local.Get(ctx, header)
		require.ErrorIs(t, err, db.ErrKeyNotFound)
	})

	t.Run("writes stay local", func(t *testing.T) {
		local, remote, storage := newStores(t)
		require.NoError(t, storage.Put(ctx, key("d"), []byte{4}))
		require.NoError(t, storage.PutMany(ctx, map[string][]byte{string(key("e")): {5}}))
		assert.Equal(t, 3, local.Len())
		assert.Equal(t, 3, remote.Len())
	})

	t.Run("close closes both", func(t *testing.T) {
		local, remote, storage := newStores(t)
		require.NoError(t, storage.Close())
		_, err := local.Get(ctx, key("c"))
		require.ErrorIs(t, err, db.ErrClosed)
		_, err = remote.Get(ctx, key("a"))
		require.ErrorIs(t, err, db.ErrClosed)
	})
}
