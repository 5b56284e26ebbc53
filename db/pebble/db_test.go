package pebble_test

import (
	"testing"

	"github.com/NethermindEth/committer/db"
	"github.com/NethermindEth/committer/db/dbtest"
	"github.com/NethermindEth/committer/db/pebble"
	"github.com/stretchr/testify/require"
)

func TestPebbleStore(t *testing.T) {
	dbtest.TestKeyValueStore(t, func(t *testing.T) db.KeyValueStore {
		return pebble.NewMemTest(t)
	})
}

func TestOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := pebble.New(dir, pebble.WithCacheSize(8), pebble.WithMaxOpenFiles(16), pebble.WithLogger(false))
	require.NoError(t, err)
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	require.NoError(t, store.Close())

	store, err = pebble.New(dir)
	require.NoError(t, err)
	has, err := store.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, has)
	require.NoError(t, store.Close())
}
