package main

import (
	"encoding/hex"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	commitmentF = "commitment"
	contractF   = "contract"
	classF      = "class"
	storageF    = "storage"
	keyF        = "key"
	storageVarF = "storage-var"

	commitmentUsage = "Persisted state commitment to prove against."
	contractUsage   = "Prove the contract leaf at this address."
	classUsage      = "Prove the class leaf of this class hash."
	storageUsage    = "Prove a storage slot of the contract at this address, see --key and --storage-var."
	keyUsage        = "Storage key to prove."
	storageVarUsage = "Name of a storage variable whose Starknet keccak is the storage key to prove."
)

type proofNodeJSON struct {
	Hash felt.Felt `json:"hash"`
	Node string    `json:"node"`
	Blob string    `json:"blob"`
}

type proofJSON struct {
	Trie  string          `json:"trie"`
	Root  felt.Felt       `json:"root"`
	Key   felt.Felt       `json:"key"`
	Leaf  felt.Felt       `json:"leaf_hash"`
	Proof []proofNodeJSON `json:"proof"`
}

func ProveCmd(newNodeFn NewNodeFn, load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Print a membership proof from the database",
		Long: `This subcommand prints the nodes on the path from a trie root to a key, for the
contracts trie, the classes trie or a contract's storage trie of a persisted state.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return prove(cmd, newNodeFn, load)
		},
	}
	cmd.Flags().String(commitmentF, "0x0", commitmentUsage)
	cmd.Flags().String(contractF, "", contractUsage)
	cmd.Flags().String(classF, "", classUsage)
	cmd.Flags().String(storageF, "", storageUsage)
	cmd.Flags().String(keyF, "", keyUsage)
	cmd.Flags().String(storageVarF, "", storageVarUsage)
	cmd.MarkFlagsOneRequired(contractF, classF, storageF)
	cmd.MarkFlagsMutuallyExclusive(contractF, classF, storageF)
	cmd.MarkFlagsMutuallyExclusive(keyF, storageVarF)
	return cmd
}

func feltFlag(cmd *cobra.Command, name string) (felt.Felt, bool, error) {
	s, err := cmd.Flags().GetString(name)
	if err != nil || s == "" {
		return felt.Zero, false, err
	}
	f, err := felt.FromString(s)
	if err != nil {
		return felt.Zero, false, errors.Wrapf(err, "parse --%s", name)
	}
	return f, true, nil
}

func storageKey(cmd *cobra.Command) (felt.Felt, error) {
	key, ok, err := feltFlag(cmd, keyF)
	if err != nil || ok {
		return key, err
	}
	name, err := cmd.Flags().GetString(storageVarF)
	if err != nil {
		return felt.Zero, err
	}
	if name == "" {
		return felt.Zero, errors.Errorf("--%s requires --%s or --%s", storageF, keyF, storageVarF)
	}
	hash, err := crypto.StarknetKeccak([]byte(name))
	if err != nil {
		return felt.Zero, err
	}
	return *hash, nil
}

func prove(cmd *cobra.Command, newNodeFn NewNodeFn, load configLoader) error {
	commitment, _, err := feltFlag(cmd, commitmentF)
	if err != nil {
		return err
	}

	n, err := openNode(cmd, newNodeFn, load)
	if err != nil {
		return err
	}
	defer closeNode(n)

	committer := n.Committer()
	roots, err := committer.Roots(commitment)
	if err != nil {
		return err
	}

	var (
		t    *trie.Trie
		root felt.Felt
		key  felt.Felt
	)
	if addr, ok, err := feltFlag(cmd, contractF); err != nil {
		return err
	} else if ok {
		t, root, key = committer.ContractsTrie(), roots.ContractsRoot, addr
	}
	if classHash, ok, err := feltFlag(cmd, classF); err != nil {
		return err
	} else if ok {
		t, root, key = committer.ClassesTrie(), roots.ClassesRoot, classHash
	}
	if addr, ok, err := feltFlag(cmd, storageF); err != nil {
		return err
	} else if ok {
		contract, err := committer.ContractState(cmd.Context(), roots, felt.Address(addr))
		if err != nil {
			return err
		}
		if key, err = storageKey(cmd); err != nil {
			return err
		}
		t, root = committer.StorageTrie(felt.Address(addr)), contract.StorageRoot
	}

	proof, err := t.Prove(cmd.Context(), root, key)
	if err != nil {
		return errors.Wrap(err, "build proof")
	}
	leaf, err := trie.VerifyProof(root, key, t.Height(), t.HashFn(), proof)
	if err != nil {
		return errors.Wrap(err, "verify proof")
	}

	out := proofJSON{
		Trie:  t.ID().String(),
		Root:  root,
		Key:   key,
		Leaf:  leaf,
		Proof: make([]proofNodeJSON, len(proof)),
	}
	for i, node := range proof {
		blob, err := node.Blob()
		if err != nil {
			return err
		}
		out.Proof[i] = proofNodeJSON{
			Hash: node.Hash(t.HashFn()),
			Node: node.String(),
			Blob: "0x" + hex.EncodeToString(blob),
		}
	}
	return writeJSON(cmd, out)
}
