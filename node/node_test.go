package node_test

import (
	"context"
	"testing"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/state"
	"github.com/NethermindEth/committer/node"
	"github.com/NethermindEth/committer/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(dbPath string) *node.Config {
	return &node.Config{
		LogLevel:       utils.ERROR,
		DatabasePath:   dbPath,
		CacheSizeMB:    8,
		TrieCacheSize:  1024,
		Workers:        2,
		ClassesHash:    "blake2s",
		CommitmentHash: "blake2s",
	}
}

func TestNewNode(t *testing.T) {
	t.Run("in-memory store with metrics", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Metrics = true
		cfg.MetricsHost = "127.0.0.1"
		cfg.MetricsPort = 0

		n, err := node.New(cfg)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		n.Start(ctx)
		require.NoError(t, n.Close())
	})

	t.Run("rejects unknown hash", func(t *testing.T) {
		cfg := testConfig("")
		cfg.ClassesHash = "sha256"

		_, err := node.New(cfg)
		require.ErrorContains(t, err, "invalid config")
	})

	t.Run("metrics need a host", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Metrics = true

		_, err := node.New(cfg)
		require.Error(t, err)
	})

	t.Run("rejects negative workers", func(t *testing.T) {
		cfg := testConfig("")
		cfg.Workers = -1

		_, err := node.New(cfg)
		require.Error(t, err)
	})
}

func TestNodeReopen(t *testing.T) {
	dbPath := t.TempDir()
	addr := felt.Address(felt.FromUint64(7))
	diff := &state.StateDiff{
		StorageDiffs: map[felt.Address]map[felt.Felt]felt.Felt{
			addr: {felt.FromUint64(1): felt.FromUint64(42)},
		},
	}

	n, err := node.New(testConfig(dbPath))
	require.NoError(t, err)
	out, err := n.Committer().Commit(context.Background(), state.Roots{}, diff)
	require.NoError(t, err)
	require.NoError(t, n.Committer().Persist(out))
	require.NoError(t, n.Close())

	n, err = node.New(testConfig(dbPath))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, n.Close())
	})

	roots, err := n.Committer().Roots(out.Commitment)
	require.NoError(t, err)
	assert.Equal(t, out.Roots, roots)

	value, err := n.Committer().Storage(context.Background(), roots, addr, felt.FromUint64(1))
	require.NoError(t, err)
	assert.Equal(t, felt.FromUint64(42), value)
}
