package memory_test

import (
	"testing"

	"github.com/NethermindEth/committer/db"
	"github.com/NethermindEth/committer/db/dbtest"
	"github.com/NethermindEth/committer/db/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	dbtest.TestKeyValueStore(t, func(t *testing.T) db.KeyValueStore {
		return memory.New()
	})
}

func TestClosed(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.Put([]byte("k"), []byte("v")))
	assert.Equal(t, 1, store.Len())
	require.NoError(t, store.Close())

	_, err := store.Has([]byte("k"))
	require.Error(t, err)
	require.Error(t, store.NewBatch().Write())
}
