package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	committer "github.com/NethermindEth/committer/cmd/committer"
	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/state"
	"github.com/NethermindEth/committer/node"
	"github.com/NethermindEth/committer/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	out := new(bytes.Buffer)
	cmd := committer.NewCmd(node.New)
	cmd.SetOut(out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append(args, "--log-level", "error", "--colour=false"))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConfigPrecedence(t *testing.T) {
	defaultConfig := func() *node.Config {
		return &node.Config{
			LogLevel:       utils.INFO,
			Colour:         true,
			CacheSizeMB:    1024,
			TrieCacheSize:  1 << 16,
			ClassesHash:    "blake2s",
			CommitmentHash: "blake2s",
			MetricsHost:    "localhost",
			MetricsPort:    9090,
		}
	}

	tests := map[string]struct {
		cfgFileContents string
		inputArgs       []string
		expectErr       bool
		expectedConfig  func() *node.Config
	}{
		"default config with no flags": {
			expectedConfig: defaultConfig,
		},
		"config file doesn't exist": {
			inputArgs: []string{"--config", "config-file-test.yaml"},
			expectErr: true,
		},
		"config file contents are empty": {
			cfgFileContents: "\n",
			expectedConfig:  defaultConfig,
		},
		"config file with some settings": {
			cfgFileContents: `log-level: debug
db-path: /home/.committer
workers: 4
classes-hash: pedersen
`,
			expectedConfig: func() *node.Config {
				cfg := defaultConfig()
				cfg.LogLevel = utils.DEBUG
				cfg.DatabasePath = "/home/.committer"
				cfg.Workers = 4
				cfg.ClassesHash = "pedersen"
				return cfg
			},
		},
		"flags without config file": {
			inputArgs: []string{
				"--log-level", "warn", "--db-path", "/home/flag/.committer",
				"--metrics", "--metrics-port", "9191", "--trie-cache-size", "0",
			},
			expectedConfig: func() *node.Config {
				cfg := defaultConfig()
				cfg.LogLevel = utils.WARN
				cfg.DatabasePath = "/home/flag/.committer"
				cfg.Metrics = true
				cfg.MetricsPort = 9191
				cfg.TrieCacheSize = 0
				return cfg
			},
		},
		"flags take precedence over config file": {
			cfgFileContents: `log-level: debug
db-path: /home/config-file/.committer
cache-size-mb: 64
`,
			inputArgs: []string{"--log-level", "error", "--db-path", "/home/flag/.committer"},
			expectedConfig: func() *node.Config {
				cfg := defaultConfig()
				cfg.LogLevel = utils.ERROR
				cfg.DatabasePath = "/home/flag/.committer"
				cfg.CacheSizeMB = 64
				return cfg
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			args := append([]string{"config"}, tc.inputArgs...)
			if tc.cfgFileContents != "" {
				args = append(args, "--config", tempCfgFile(t, tc.cfgFileContents))
			}

			out := new(bytes.Buffer)
			cmd := committer.NewCmd(node.New)
			cmd.SetOut(out)
			cmd.SetArgs(args)
			err := cmd.ExecuteContext(context.Background())
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			got := new(node.Config)
			require.NoError(t, yaml.Unmarshal(out.Bytes(), got))
			assert.Equal(t, tc.expectedConfig(), got)
		})
	}
}

func tempCfgFile(t *testing.T, cfg string) string {
	path := filepath.Join(t.TempDir(), "committer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))
	return path
}

func TestCommitTrieCmd(t *testing.T) {
	t.Run("single leaf", func(t *testing.T) {
		input := `{"height": 3, "hash": "pedersen", "updates": [{"key": "0x5", "value": "0x1"}]}`
		out, err := execute(t, input, "commit-trie")
		require.NoError(t, err)

		var res struct {
			Root  felt.Felt `json:"root"`
			Facts []struct {
				Hash felt.Felt `json:"hash"`
				Leaf bool      `json:"leaf"`
			} `json:"facts"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &res))

		leaf := felt.FromUint64(1)
		path := felt.FromUint64(5)
		length := felt.FromUint64(3)
		want := new(felt.Felt).Add(crypto.Pedersen(&leaf, &path), &length)
		assert.Equal(t, *want, res.Root)
		assert.Len(t, res.Facts, 2)
	})

	t.Run("invalid height", func(t *testing.T) {
		_, err := execute(t, `{"height": 0, "hash": "pedersen"}`, "commit-trie")
		require.ErrorContains(t, err, "invalid input")
	})

	t.Run("key out of range", func(t *testing.T) {
		input := `{"height": 3, "hash": "pedersen", "updates": [{"key": "0x8", "value": "0x1"}]}`
		_, err := execute(t, input, "commit-trie")
		require.Error(t, err)
	})
}

type forestOutput struct {
	ContractsRoot felt.Felt                  `json:"contracts_root"`
	ClassesRoot   felt.Felt                  `json:"classes_root"`
	Commitment    felt.Felt                  `json:"state_commitment"`
	StorageRoots  map[felt.Address]felt.Felt `json:"storage_roots"`
}

func TestCommitForestCmd(t *testing.T) {
	dbPath := t.TempDir()
	diff := `{
  "storage_diffs": {"0x7": {"0x1": "0x2a"}},
  "nonces": {"0x7": "0x1"},
  "deployed_contracts": {"0x7": "0x99"}
}`

	out, err := execute(t, diff, "commit-forest", "--db-path", dbPath, "--persist", "--storage-roots")
	require.NoError(t, err)

	var first forestOutput
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, first.ContractsRoot, first.Commitment)
	assert.True(t, first.ClassesRoot.IsZero())
	require.Len(t, first.StorageRoots, 1)

	t.Run("prove storage slot", func(t *testing.T) {
		out, err := execute(t, "", "prove", "--db-path", dbPath,
			"--commitment", first.Commitment.String(), "--storage", "0x7", "--key", "0x1")
		require.NoError(t, err)

		var proof struct {
			Leaf  felt.Felt         `json:"leaf_hash"`
			Proof []json.RawMessage `json:"proof"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &proof))
		assert.Equal(t, felt.FromUint64(0x2a), proof.Leaf)
		assert.NotEmpty(t, proof.Proof)
	})

	t.Run("prove absent contract", func(t *testing.T) {
		out, err := execute(t, "", "prove", "--db-path", dbPath,
			"--commitment", first.Commitment.String(), "--contract", "0x8")
		require.NoError(t, err)
		assert.Contains(t, out, `"leaf_hash": "0x0"`)
	})

	t.Run("continue from persisted commitment", func(t *testing.T) {
		out, err := execute(t, `{"storage_diffs": {"0x7": {"0x1": "0x0"}}}`, "commit-forest",
			"--db-path", dbPath, "--prev", first.Commitment.String())
		require.NoError(t, err)

		var next forestOutput
		require.NoError(t, json.Unmarshal([]byte(out), &next))
		assert.NotEqual(t, first.Commitment, next.Commitment)
		assert.Empty(t, next.StorageRoots)
	})

	t.Run("unknown previous commitment", func(t *testing.T) {
		_, err := execute(t, `{}`, "commit-forest", "--db-path", dbPath, "--prev", "0x1234")
		require.ErrorIs(t, err, state.ErrUnknownRoots)
	})

	t.Run("db stats", func(t *testing.T) {
		out, err := execute(t, "", "db-stats", "--db-path", dbPath)
		require.NoError(t, err)
		assert.Contains(t, out, "ContractStorageTrie")
		assert.Contains(t, out, "StateRoots")
	})
}

func TestCommitForestCmdCBOR(t *testing.T) {
	diff := `{"storage_diffs": {"0x7": {"0x1": "0x2a"}}}`

	first, err := execute(t, diff, "commit-forest", "--cbor")
	require.NoError(t, err)
	second, err := execute(t, diff, "commit-forest", "--cbor")
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	assert.Equal(t, first, second)
}

func TestDBStatsNeedsPath(t *testing.T) {
	_, err := execute(t, "", "db-stats")
	require.Error(t, err)
}
