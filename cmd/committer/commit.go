package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/state"
	"github.com/NethermindEth/committer/core/trie"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
	"github.com/NethermindEth/committer/validator"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const (
	inputF        = "input"
	persistF      = "persist"
	storageRootsF = "storage-roots"
	prevF         = "prev"
	cborF         = "cbor"

	inputUsage        = "JSON file holding the batch to commit, - reads stdin."
	persistUsage      = "Writes the facts to the database after committing."
	storageRootsUsage = "Reports the new storage root of every touched contract."
	prevUsage         = "State commitment the batch applies to. It must be persisted unless zero."
	cborUsage         = "Writes the output as canonical CBOR instead of JSON."
)

// TrieInput is a batch of updates on a single trie.
type TrieInput struct {
	Height  uint8        `json:"height" validate:"min=1,max=251"`
	Hash    string       `json:"hash" validate:"required,hash_fn"`
	Root    felt.Felt    `json:"root"`
	Updates []TrieUpdate `json:"updates"`
}

// TrieUpdate sets key to value, a zero value deletes the key.
type TrieUpdate struct {
	Key   felt.Felt `json:"key"`
	Value felt.Felt `json:"value"`
}

type trieFactJSON struct {
	Hash felt.Felt `json:"hash"`
	Leaf bool      `json:"leaf,omitempty"`
	Blob string    `json:"blob"`
}

type trieOutputJSON struct {
	Root  felt.Felt      `json:"root"`
	Facts []trieFactJSON `json:"facts"`
}

func CommitTrieCmd(newNodeFn NewNodeFn, load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-trie",
		Short: "Commit a batch of updates to a single trie",
		Long: `This subcommand commits a batch of key/value updates on top of a single trie root
and prints the new root together with every node created by the commit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return commitTrie(cmd, newNodeFn, load)
		},
	}
	cmd.Flags().String(inputF, "-", inputUsage)
	cmd.Flags().Bool(persistF, false, persistUsage)
	return cmd
}

func CommitForestCmd(newNodeFn NewNodeFn, load configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "commit-forest",
		Short: "Commit a state diff to the whole forest",
		Long: `This subcommand applies a state diff on top of a persisted state commitment and
prints the new roots, the new state commitment and the facts to persist.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return commitForest(cmd, newNodeFn, load)
		},
	}
	cmd.Flags().String(inputF, "-", inputUsage)
	cmd.Flags().Bool(persistF, false, persistUsage)
	cmd.Flags().Bool(storageRootsF, false, storageRootsUsage)
	cmd.Flags().String(prevF, "0x0", prevUsage)
	cmd.Flags().Bool(cborF, false, cborUsage)
	return cmd
}

func commitTrie(cmd *cobra.Command, newNodeFn NewNodeFn, load configLoader) error {
	var input TrieInput
	if err := readInput(cmd, &input); err != nil {
		return err
	}
	if err := validator.Validator().Struct(input); err != nil {
		return errors.Wrap(err, "invalid input")
	}
	hashFn, err := crypto.HashByName(input.Hash)
	if err != nil {
		return err
	}

	n, err := openNode(cmd, newNodeFn, load)
	if err != nil {
		return err
	}
	defer closeNode(n)

	updates := make([]trie.Update, len(input.Updates))
	for i, u := range input.Updates {
		updates[i] = trie.Update{Key: u.Key, Value: trienode.NewValueLeaf(u.Value)}
	}

	t := trie.New(trieutils.StorageTrieID(felt.Address{}), input.Height, hashFn, n.TrieDB(), trienode.DecodeValueLeaf)
	res, err := t.Commit(cmd.Context(), input.Root, updates)
	if err != nil {
		return errors.Wrap(err, "commit trie")
	}

	persist, err := cmd.Flags().GetBool(persistF)
	if err != nil {
		return err
	}
	if persist {
		facts := trienode.NewMergeNodeSet()
		if err = facts.Merge(res.Nodes); err != nil {
			return err
		}
		if err = n.TrieDB().Write(facts); err != nil {
			return errors.Wrap(err, "persist facts")
		}
	}

	out := trieOutputJSON{Root: res.Root, Facts: []trieFactJSON{}}
	err = res.Nodes.ForEach(func(key trienode.NodeKey, fact trienode.Fact) error {
		out.Facts = append(out.Facts, trieFactJSON{
			Hash: key.Hash,
			Leaf: key.Leaf,
			Blob: "0x" + hex.EncodeToString(fact.Blob),
		})
		return nil
	})
	if err != nil {
		return err
	}
	return writeJSON(cmd, out)
}

func commitForest(cmd *cobra.Command, newNodeFn NewNodeFn, load configLoader) error {
	var diff state.StateDiff
	if err := readInput(cmd, &diff); err != nil {
		return err
	}

	prevStr, err := cmd.Flags().GetString(prevF)
	if err != nil {
		return err
	}
	prev, err := felt.FromString(prevStr)
	if err != nil {
		return errors.Wrapf(err, "parse --%s", prevF)
	}
	storageRoots, err := cmd.Flags().GetBool(storageRootsF)
	if err != nil {
		return err
	}
	persist, err := cmd.Flags().GetBool(persistF)
	if err != nil {
		return err
	}
	asCBOR, err := cmd.Flags().GetBool(cborF)
	if err != nil {
		return err
	}

	n, err := openNode(cmd, newNodeFn, load)
	if err != nil {
		return err
	}
	defer closeNode(n)

	committer := n.Committer()
	roots, err := committer.Roots(prev)
	if err != nil {
		return err
	}

	var opts []state.CommitOption
	if storageRoots {
		opts = append(opts, state.WithStorageRoots())
	}
	out, err := committer.Commit(cmd.Context(), roots, &diff, opts...)
	if err != nil {
		return errors.Wrap(err, "commit state diff")
	}

	if persist {
		if err = committer.Persist(out); err != nil {
			return errors.Wrap(err, "persist output")
		}
	}

	if asCBOR {
		data, err := out.MarshalCBOR()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	return writeJSON(cmd, out)
}

func readInput(cmd *cobra.Command, v any) error {
	path, err := cmd.Flags().GetString(inputF)
	if err != nil {
		return err
	}

	var data []byte
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return errors.Wrapf(err, "read input %s", path)
	}
	if err = json.Unmarshal(data, v); err != nil {
		return errors.Wrapf(err, "decode input %s", path)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
