// Package dbtest holds a conformance suite shared by the key-value store
// backends.
package dbtest

import (
	"testing"

	"github.com/NethermindEth/committer/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, store db.KeyValueReader, key []byte) []byte {
	t.Helper()
	var out []byte
	require.NoError(t, store.Get(key, func(v []byte) error {
		out = append([]byte{}, v...)
		return nil
	}))
	return out
}

// TestKeyValueStore runs the conformance suite against stores produced by newStore.
func TestKeyValueStore(t *testing.T, newStore func(t *testing.T) db.KeyValueStore) {
	t.Run("put get has delete", func(t *testing.T) {
		store := newStore(t)

		has, err := store.Has([]byte("a"))
		require.NoError(t, err)
		assert.False(t, has)
		require.ErrorIs(t, store.Get([]byte("a"), func([]byte) error { return nil }), db.ErrKeyNotFound)

		require.NoError(t, store.Put([]byte("a"), []byte("1")))
		has, err = store.Has([]byte("a"))
		require.NoError(t, err)
		assert.True(t, has)
		assert.Equal(t, []byte("1"), get(t, store, []byte("a")))

		require.NoError(t, store.Delete([]byte("a")))
		has, err = store.Has([]byte("a"))
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("batch is invisible until written", func(t *testing.T) {
		store := newStore(t)
		batch := store.NewBatch()
		require.NoError(t, batch.Put([]byte("k1"), []byte("v1")))
		require.NoError(t, batch.Put([]byte("k2"), []byte("v2")))
		assert.Equal(t, 8, batch.Size())

		has, err := store.Has([]byte("k1"))
		require.NoError(t, err)
		assert.False(t, has)

		require.NoError(t, batch.Write())
		assert.Equal(t, []byte("v1"), get(t, store, []byte("k1")))
		assert.Equal(t, []byte("v2"), get(t, store, []byte("k2")))
	})

	t.Run("iterator respects prefix bounds", func(t *testing.T) {
		store := newStore(t)
		for _, k := range []string{"a1", "b1", "b2", "b3", "c1"} {
			require.NoError(t, store.Put([]byte(k), []byte(k)))
		}

		it, err := store.NewIterator([]byte("b"), true)
		require.NoError(t, err)
		var keys []string
		for it.Next() {
			keys = append(keys, string(it.Key()))
			v, vErr := it.Value()
			require.NoError(t, vErr)
			assert.Equal(t, string(it.Key()), string(v))
		}
		require.NoError(t, it.Close())
		assert.Equal(t, []string{"b1", "b2", "b3"}, keys)

		it, err = store.NewIterator([]byte("b"), false)
		require.NoError(t, err)
		keys = keys[:0]
		for it.Next() {
			keys = append(keys, string(it.Key()))
		}
		require.NoError(t, it.Close())
		assert.Equal(t, []string{"b1", "b2", "b3", "c1"}, keys)
	})

	t.Run("seek", func(t *testing.T) {
		store := newStore(t)
		for _, k := range []string{"a", "c", "e"} {
			require.NoError(t, store.Put([]byte(k), nil))
		}
		it, err := store.NewIterator(nil, false)
		require.NoError(t, err)
		require.True(t, it.Seek([]byte("b")))
		assert.Equal(t, []byte("c"), it.Key())
		assert.False(t, it.Seek([]byte("f")))
		require.NoError(t, it.Close())
	})
}
