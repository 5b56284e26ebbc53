package triedb_test

import (
	"errors"
	"testing"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/triedb"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
	"github.com/NethermindEth/committer/db"
	"github.com/NethermindEth/committer/db/memory"
	"github.com/NethermindEth/committer/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func sampleFacts(t *testing.T) (*trienode.MergeNodeSet, felt.Felt, *trienode.BinaryNode) {
	t.Helper()

	binary := &trienode.BinaryNode{Left: felt.FromUint64(1), Right: felt.FromUint64(2)}
	hash := binary.Hash(crypto.Pedersen)

	contracts := trienode.NewNodeSet(trieutils.ContractsTrie)
	require.NoError(t, contracts.Add(hash, binary))

	storage := trienode.NewNodeSet(trieutils.ContractStorageTrie)
	leaf := trienode.NewValueLeaf(felt.FromUint64(2))
	require.NoError(t, storage.Add(leaf.Felt, &trienode.LeafNode{Value: leaf}))

	facts := trienode.NewMergeNodeSet()
	require.NoError(t, facts.Merge(contracts))
	require.NoError(t, facts.Merge(storage))
	return facts, hash, binary
}

func TestDatabase(t *testing.T) {
	t.Run("write then read", func(t *testing.T) {
		memDB := memory.New()
		database := triedb.New(memDB, nil)
		facts, hash, binary := sampleFacts(t)

		require.NoError(t, database.Write(facts))

		blob, err := database.Node(trieutils.ContractsTrie, hash, false)
		require.NoError(t, err)
		want, err := binary.Blob()
		require.NoError(t, err)
		assert.Equal(t, want, blob)

		// served from the clean cache the second time
		blob, err = database.Node(trieutils.ContractsTrie, hash, false)
		require.NoError(t, err)
		assert.Equal(t, want, blob)

		has, err := database.Has(trieutils.ContractStorageTrie, felt.FromUint64(2), true)
		require.NoError(t, err)
		assert.True(t, has)

		has, err = database.Has(trieutils.ContractStorageTrie, felt.FromUint64(2), false)
		require.NoError(t, err)
		assert.False(t, has, "leaf and inner namespaces must not collide")
	})

	t.Run("trie types are isolated", func(t *testing.T) {
		database := triedb.New(memory.New(), nil)
		facts, hash, _ := sampleFacts(t)
		require.NoError(t, database.Write(facts))

		_, err := database.Node(trieutils.ClassesTrie, hash, false)
		require.ErrorIs(t, err, triedb.ErrNotFound)
	})

	t.Run("missing node", func(t *testing.T) {
		database := triedb.New(memory.New(), &triedb.Config{CleanCacheSize: 0})
		_, err := database.Node(trieutils.ContractsTrie, felt.FromUint64(99), false)
		require.ErrorIs(t, err, triedb.ErrNotFound)
	})

	t.Run("replaying a batch is a no-op", func(t *testing.T) {
		memDB := memory.New()
		database := triedb.New(memDB, nil)
		facts, _, _ := sampleFacts(t)

		require.NoError(t, database.Write(facts))
		size := memDB.Len()
		require.NoError(t, database.Write(facts))
		assert.Equal(t, size, memDB.Len())
	})

	t.Run("conflicting content aborts the whole batch", func(t *testing.T) {
		memDB := memory.New()
		database := triedb.New(memDB, nil)
		facts, hash, _ := sampleFacts(t)

		require.NoError(t, memDB.Put(triedb.NodeKey(trieutils.ContractsTrie, hash, false), []byte{0xde, 0xad}))

		err := database.Write(facts)
		require.ErrorIs(t, err, triedb.ErrConflict)
		assert.Equal(t, 1, memDB.Len(), "no fact of a failed batch may be written")
	})

	t.Run("records are written with facts", func(t *testing.T) {
		database := triedb.New(memory.New(), nil)
		facts, _, _ := sampleFacts(t)
		record := triedb.Record{Key: db.StateRoots.Key([]byte{1}), Value: []byte{2}}

		require.NoError(t, database.Write(facts, record))
		value, err := database.Get(record.Key)
		require.NoError(t, err)
		assert.Equal(t, record.Value, value)

		require.NoError(t, database.Write(nil, record))
		err = database.Write(nil, triedb.Record{Key: record.Key, Value: []byte{3}})
		require.ErrorIs(t, err, triedb.ErrConflict)

		_, err = database.Get(db.StateRoots.Key([]byte{9}))
		require.ErrorIs(t, err, db.ErrKeyNotFound)
	})

	t.Run("stats", func(t *testing.T) {
		database := triedb.New(memory.New(), nil)
		facts, _, _ := sampleFacts(t)
		require.NoError(t, database.Write(facts, triedb.Record{Key: db.StateRoots.Key([]byte{1}), Value: []byte{2}}))

		stats, err := database.Stats()
		require.NoError(t, err)
		require.Len(t, stats, len(db.BucketValues()))

		byBucket := make(map[db.Bucket]triedb.BucketStats)
		for _, s := range stats {
			byBucket[s.Bucket] = s
		}
		assert.Equal(t, 1, byBucket[db.ContractStorageTrie].Leaves)
		assert.Equal(t, 1, byBucket[db.ContractsTrie].Inner)
		assert.Equal(t, 0, byBucket[db.ClassesTrie].Total())
		assert.Equal(t, 1, byBucket[db.StateRoots].Total())
		assert.Equal(t, 2, byBucket[db.StateRoots].KeySize)
	})
}

type resetCountingBatch struct {
	db.Batch
	resets int
}

func (b *resetCountingBatch) Reset() {
	b.resets++
	b.Batch.Reset()
}

func TestDatabaseReleasesBatch(t *testing.T) {
	write := func(t *testing.T, mem *memory.Database) (*resetCountingBatch, error) {
		t.Helper()

		ctrl := gomock.NewController(t)
		store := mocks.NewMockKeyValueStore(ctrl)
		batch := &resetCountingBatch{Batch: mem.NewBatch()}
		store.EXPECT().NewBatch().Return(batch)
		store.EXPECT().Get(gomock.Any(), gomock.Any()).DoAndReturn(mem.Get).AnyTimes()

		facts, _, _ := sampleFacts(t)
		return batch, triedb.New(store, nil).Write(facts)
	}

	t.Run("after a conflict", func(t *testing.T) {
		mem := memory.New()
		_, hash, _ := sampleFacts(t)
		require.NoError(t, mem.Put(triedb.NodeKey(trieutils.ContractsTrie, hash, false), []byte{0xde, 0xad}))

		batch, err := write(t, mem)
		require.ErrorIs(t, err, triedb.ErrConflict)
		assert.Equal(t, 1, batch.resets)
	})

	t.Run("when every fact is already stored", func(t *testing.T) {
		mem := memory.New()
		facts, _, _ := sampleFacts(t)
		require.NoError(t, triedb.New(mem, nil).Write(facts))

		batch, err := write(t, mem)
		require.NoError(t, err)
		assert.Equal(t, 1, batch.resets)
	})

	t.Run("after a successful write", func(t *testing.T) {
		mem := memory.New()
		batch, err := write(t, mem)
		require.NoError(t, err)
		assert.Equal(t, 1, batch.resets)
		assert.Equal(t, 2, mem.Len())
	})
}

func TestDatabaseStoreFailures(t *testing.T) {
	errStore := errors.New("disk on fire")

	t.Run("read errors are not reported as missing nodes", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockKeyValueStore(ctrl)
		store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(errStore)

		database := triedb.New(store, nil)
		_, err := database.Node(trieutils.ContractsTrie, felt.One, false)
		require.ErrorIs(t, err, errStore)
		require.NotErrorIs(t, err, triedb.ErrNotFound)
	})

	t.Run("batch write failure is returned", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockKeyValueStore(ctrl)

		closed := memory.New()
		require.NoError(t, closed.Close())
		store.EXPECT().NewBatch().Return(closed.NewBatch())
		store.EXPECT().Get(gomock.Any(), gomock.Any()).Return(db.ErrKeyNotFound).AnyTimes()

		database := triedb.New(store, nil)
		facts, _, _ := sampleFacts(t)
		require.Error(t, database.Write(facts))
	})
}
