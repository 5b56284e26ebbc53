package trie_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie"
	"github.com/NethermindEth/committer/core/trie/triedb"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
	"github.com/NethermindEth/committer/db/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testTrie struct {
	*trie.Trie
	database *triedb.Database
}

func newTestTrie(t *testing.T, height uint8) *testTrie {
	t.Helper()
	database := triedb.New(memory.New(), nil)
	return &testTrie{
		Trie:     trie.New(trieutils.ID{Type: trieutils.ContractStorageTrie}, height, crypto.Pedersen, database, trienode.DecodeValueLeaf),
		database: database,
	}
}

// commit commits updates on top of root and persists the new facts.
func (tt *testTrie) commit(t *testing.T, root felt.Felt, updates ...trie.Update) *trie.Result {
	t.Helper()
	res, err := tt.Commit(context.Background(), root, updates)
	require.NoError(t, err)

	facts := trienode.NewMergeNodeSet()
	require.NoError(t, facts.Merge(res.Nodes))
	require.NoError(t, tt.database.Write(facts))
	return res
}

func (tt *testTrie) get(t *testing.T, root felt.Felt, key uint64) *felt.Felt {
	t.Helper()
	leaf, err := tt.Get(context.Background(), root, felt.FromUint64(key))
	require.NoError(t, err)
	if leaf == nil {
		return nil
	}
	return &leaf.(*trienode.ValueLeaf).Felt
}

func upd(key, value uint64) trie.Update {
	return trie.Update{Key: felt.FromUint64(key), Value: trienode.NewValueLeaf(felt.FromUint64(value))}
}

func edgeHash(length uint8, path uint64, child felt.Felt) felt.Felt {
	n := &trienode.EdgeNode{Path: trieutils.NewBitArray(length, path), Child: child}
	return n.Hash(crypto.Pedersen)
}

// referenceRoot computes the root of a trie holding leaves by building it
// bottom up from scratch, with no previous tree to update.
func referenceRoot(height uint8, leaves map[uint64]uint64) felt.Felt {
	var keys []uint64
	for k, v := range leaves {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var build func(depth uint8, keys []uint64) (trieutils.BitArray, felt.Felt, bool)
	materialise := func(path trieutils.BitArray, child felt.Felt) felt.Felt {
		if path.IsEmpty() {
			return child
		}
		return (&trienode.EdgeNode{Path: path, Child: child}).Hash(crypto.Pedersen)
	}
	build = func(depth uint8, keys []uint64) (trieutils.BitArray, felt.Felt, bool) {
		if len(keys) == 0 {
			return trieutils.BitArray{}, felt.Zero, false
		}
		if depth == height {
			return trieutils.BitArray{}, felt.FromUint64(leaves[keys[0]]), true
		}
		mid := slices.IndexFunc(keys, func(k uint64) bool { return (k>>(height-1-depth))&1 == 1 })
		if mid < 0 {
			mid = len(keys)
		}
		lp, lc, lok := build(depth+1, keys[:mid])
		rp, rc, rok := build(depth+1, keys[mid:])
		switch {
		case lok && rok:
			n := &trienode.BinaryNode{Left: materialise(lp, lc), Right: materialise(rp, rc)}
			return trieutils.BitArray{}, n.Hash(crypto.Pedersen), true
		case lok:
			return *new(trieutils.BitArray).PrependBit(0, &lp), lc, true
		default:
			return *new(trieutils.BitArray).PrependBit(1, &rp), rc, true
		}
	}

	path, child, ok := build(0, keys)
	if !ok {
		return felt.Zero
	}
	return materialise(path, child)
}

func TestCommitSingleLeaf(t *testing.T) {
	tt := newTestTrie(t, 8)
	value := felt.FromUint64(0xabc)

	res := tt.commit(t, felt.Zero, trie.Update{Key: felt.FromUint64(5), Value: trienode.NewValueLeaf(value)})

	assert.Equal(t, edgeHash(8, 5, value), res.Root)
	assert.Equal(t, 2, res.Nodes.Len())
	_, ok := res.Nodes.Get(trienode.NodeKey{Hash: value, Leaf: true})
	assert.True(t, ok)

	assert.Equal(t, &value, tt.get(t, res.Root, 5))
	assert.Nil(t, tt.get(t, res.Root, 6))
}

func TestCommitSplitsEdge(t *testing.T) {
	tt := newTestTrie(t, 8)
	v5, v6 := felt.FromUint64(55), felt.FromUint64(66)

	first := tt.commit(t, felt.Zero, upd(5, 55))
	res := tt.commit(t, first.Root, upd(6, 66))

	// 5 = 00000101 and 6 = 00000110 share six bits
	binary := &trienode.BinaryNode{
		Left:  edgeHash(1, 1, v5),
		Right: edgeHash(1, 0, v6),
	}
	binaryHash := binary.Hash(crypto.Pedersen)
	root := edgeHash(6, 1, binaryHash)
	require.Equal(t, root, res.Root)

	// The old root edge is replaced, leaf 5 is only referenced.
	want := []trienode.NodeKey{
		{Hash: v6, Leaf: true},
		{Hash: edgeHash(1, 1, v5)},
		{Hash: edgeHash(1, 0, v6)},
		{Hash: binaryHash},
		{Hash: root},
	}
	assert.ElementsMatch(t, want, res.Nodes.Keys())
	_, reused := res.Nodes.Get(trienode.NodeKey{Hash: v5, Leaf: true})
	assert.False(t, reused)

	assert.Equal(t, &v5, tt.get(t, res.Root, 5))
	assert.Equal(t, &v6, tt.get(t, res.Root, 6))
}

func TestCommitValidation(t *testing.T) {
	var hashCalls int
	counting := func(a, b *felt.Felt) *felt.Felt {
		hashCalls++
		return crypto.Pedersen(a, b)
	}
	database := triedb.New(memory.New(), nil)
	tr := trie.New(trieutils.ContractsTrieID(), 8, counting, database, trienode.DecodeValueLeaf)
	root := felt.FromUint64(42)

	t.Run("duplicate key", func(t *testing.T) {
		res, err := tr.Commit(context.Background(), root, []trie.Update{upd(3, 1), upd(9, 1), upd(3, 2)})
		require.ErrorIs(t, err, trie.ErrDuplicateKey)
		assert.Nil(t, res)

		var keyErr *trie.KeyError
		require.True(t, errors.As(err, &keyErr))
		assert.Equal(t, felt.FromUint64(3), keyErr.Key)
		assert.Equal(t, trieutils.ContractsTrie, keyErr.Trie.Type)
	})

	t.Run("key out of range", func(t *testing.T) {
		_, err := tr.Commit(context.Background(), root, []trie.Update{upd(1, 1), upd(256, 1)})
		require.ErrorIs(t, err, trie.ErrInvalidKey)

		_, err = tr.Commit(context.Background(), root, []trie.Update{upd(255, 1)})
		require.NotErrorIs(t, err, trie.ErrInvalidKey)
	})

	// the last commit above hit the missing root, nothing was hashed before
	assert.Zero(t, hashCalls)
}

func TestCommitIsOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	updates := make([]trie.Update, 0, 64)
	for _, k := range rng.Perm(256)[:64] {
		updates = append(updates, upd(uint64(k), rng.Uint64N(1000)+1))
	}

	base := newTestTrie(t, 8)
	want := base.commit(t, felt.Zero, updates...)

	for range 5 {
		shuffled := slices.Clone(updates)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := base.Commit(context.Background(), felt.Zero, shuffled)
		require.NoError(t, err)
		assert.Equal(t, want.Root, got.Root)
		assert.Equal(t, want.Nodes.Keys(), got.Nodes.Keys())
	}
}

func TestCommitNoOp(t *testing.T) {
	tt := newTestTrie(t, 8)
	res := tt.commit(t, felt.Zero, upd(1, 10), upd(2, 20), upd(200, 30))

	t.Run("same values", func(t *testing.T) {
		again, err := tt.Commit(context.Background(), res.Root, []trie.Update{upd(200, 30), upd(1, 10)})
		require.NoError(t, err)
		assert.Equal(t, res.Root, again.Root)
		assert.Zero(t, again.Nodes.Len())
	})

	t.Run("deleting absent keys", func(t *testing.T) {
		again, err := tt.Commit(context.Background(), res.Root, []trie.Update{upd(3, 0), upd(100, 0), upd(201, 0)})
		require.NoError(t, err)
		assert.Equal(t, res.Root, again.Root)
		assert.Zero(t, again.Nodes.Len())
	})

	t.Run("empty batch", func(t *testing.T) {
		again, err := tt.Commit(context.Background(), res.Root, nil)
		require.NoError(t, err)
		assert.Equal(t, res.Root, again.Root)
		assert.Zero(t, again.Nodes.Len())
	})

	t.Run("nil value deletes", func(t *testing.T) {
		again, err := tt.Commit(context.Background(), felt.Zero, []trie.Update{{Key: felt.FromUint64(7)}})
		require.NoError(t, err)
		assert.True(t, again.Root.IsZero())
	})
}

func TestCommitDeletion(t *testing.T) {
	tt := newTestTrie(t, 8)
	res := tt.commit(t, felt.Zero, upd(5, 55), upd(6, 66), upd(130, 77))

	res = tt.commit(t, res.Root, upd(6, 0))
	assert.Equal(t, referenceRoot(8, map[uint64]uint64{5: 55, 130: 77}), res.Root)
	assert.Nil(t, tt.get(t, res.Root, 6))

	res = tt.commit(t, res.Root, upd(130, 0))
	assert.Equal(t, edgeHash(8, 5, felt.FromUint64(55)), res.Root)

	res = tt.commit(t, res.Root, upd(5, 0))
	assert.True(t, res.Root.IsZero())
	assert.Zero(t, res.Nodes.Len())
}

// Whatever sequence of batches leads to a key set, the root only depends on
// the final key set.
func TestCommitMatchesFreshBuild(t *testing.T) {
	for _, height := range []uint8{1, 3, 8, 16} {
		rng := rand.New(rand.NewPCG(uint64(height), 7))
		tt := newTestTrie(t, height)
		current := make(map[uint64]uint64)
		root := felt.Zero
		space := uint64(1) << height

		for range 30 {
			batch := make(map[uint64]uint64)
			for range rng.IntN(12) + 1 {
				value := rng.Uint64N(4) // zero deletes
				batch[rng.Uint64N(space)] = value
			}
			updates := make([]trie.Update, 0, len(batch))
			for k, v := range batch {
				updates = append(updates, upd(k, v))
				current[k] = v
			}

			root = tt.commit(t, root, updates...).Root
			require.Equal(t, referenceRoot(height, current), root, "height %d", height)
		}

		for k, v := range current {
			got := tt.get(t, root, k)
			if v == 0 {
				assert.Nil(t, got)
				continue
			}
			want := felt.FromUint64(v)
			assert.Equal(t, &want, got)
		}
	}
}

func TestCommitFullHeight(t *testing.T) {
	tt := newTestTrie(t, trie.StorageTrieHeight)

	keys := make([]felt.Felt, 20)
	updates := make([]trie.Update, len(keys))
	for i := range keys {
		seed := felt.FromUint64(uint64(i))
		b := crypto.Pedersen(&seed, &seed).Bytes()
		b[0] &= 0x07 // below 2^251
		keys[i] = felt.FromBytes(b[:])
		updates[i] = trie.Update{Key: keys[i], Value: trienode.NewValueLeaf(felt.FromUint64(uint64(i + 1)))}
	}

	res := tt.commit(t, felt.Zero, updates...)
	for i, key := range keys {
		leaf, err := tt.Get(context.Background(), res.Root, key)
		require.NoError(t, err)
		assert.Equal(t, felt.FromUint64(uint64(i+1)), leaf.(*trienode.ValueLeaf).Felt)
	}

	// an all ones key is the largest valid key
	maxKey := felt.FromBytes(append([]byte{0x07}, slices.Repeat([]byte{0xff}, 31)...))
	res = tt.commit(t, res.Root, trie.Update{Key: maxKey, Value: trienode.NewValueLeaf(felt.One)})
	leaf, err := tt.Get(context.Background(), res.Root, maxKey)
	require.NoError(t, err)
	assert.Equal(t, felt.One, leaf.(*trienode.ValueLeaf).Felt)
}

func TestCommitMissingNode(t *testing.T) {
	tt := newTestTrie(t, 8)
	res, err := tt.Commit(context.Background(), felt.Zero, []trie.Update{upd(1, 1), upd(2, 2)})
	require.NoError(t, err)

	// facts were never persisted
	_, err = tt.Commit(context.Background(), res.Root, []trie.Update{upd(3, 3)})
	require.ErrorIs(t, err, triedb.ErrNotFound)

	var missing *trie.MissingNodeError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, res.Root, missing.Hash)
	assert.True(t, missing.Path.IsEmpty())
}

func TestCommitCancelled(t *testing.T) {
	tt := newTestTrie(t, 8)
	res := tt.commit(t, felt.Zero, upd(1, 1), upd(2, 2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := tt.Commit(ctx, res.Root, []trie.Update{upd(3, 3)})
	require.ErrorIs(t, err, context.Canceled)
}

func TestProof(t *testing.T) {
	tt := newTestTrie(t, 8)
	present := map[uint64]uint64{5: 55, 6: 66, 130: 77, 255: 88}
	updates := make([]trie.Update, 0, len(present))
	for k, v := range present {
		updates = append(updates, upd(k, v))
	}
	root := tt.commit(t, felt.Zero, updates...).Root
	ctx := context.Background()

	for key := range uint64(256) {
		proof, err := tt.Prove(ctx, root, felt.FromUint64(key))
		require.NoError(t, err)

		leafHash, err := trie.VerifyProof(root, felt.FromUint64(key), 8, crypto.Pedersen, proof)
		require.NoError(t, err, "key %d", key)
		assert.Equal(t, felt.FromUint64(present[key]), leafHash, "key %d", key)
	}

	t.Run("empty trie", func(t *testing.T) {
		proof, err := tt.Prove(ctx, felt.Zero, felt.FromUint64(5))
		require.NoError(t, err)
		assert.Empty(t, proof)

		leafHash, err := trie.VerifyProof(felt.Zero, felt.FromUint64(5), 8, crypto.Pedersen, proof)
		require.NoError(t, err)
		assert.True(t, leafHash.IsZero())
	})

	t.Run("tampered", func(t *testing.T) {
		proof, err := tt.Prove(ctx, root, felt.FromUint64(5))
		require.NoError(t, err)
		require.NotEmpty(t, proof)

		proof[len(proof)-1] = &trienode.LeafNode{Value: trienode.NewValueLeaf(felt.FromUint64(56))}
		_, err = trie.VerifyProof(root, felt.FromUint64(5), 8, crypto.Pedersen, proof)
		require.ErrorIs(t, err, trie.ErrInvalidProof)
	})

	t.Run("truncated", func(t *testing.T) {
		proof, err := tt.Prove(ctx, root, felt.FromUint64(5))
		require.NoError(t, err)
		require.Greater(t, len(proof), 2)

		_, err = trie.VerifyProof(root, felt.FromUint64(5), 8, crypto.Pedersen, proof[:1])
		require.ErrorIs(t, err, trie.ErrInvalidProof)
	})
}
