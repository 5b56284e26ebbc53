package state

import (
	"encoding/hex"
	"encoding/json"
	"slices"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
	"github.com/NethermindEth/committer/encoder"
)

// Output is the result of a forest commit: the new roots and commitment plus
// every node that must be persisted for them to be resolvable.
type Output struct {
	Roots      Roots
	Commitment felt.Felt
	// StorageRoots is only set when committing WithStorageRoots
	StorageRoots map[felt.Address]felt.Felt
	Facts        *trienode.MergeNodeSet
}

type factJSON struct {
	Trie string    `json:"trie"`
	Hash felt.Felt `json:"hash"`
	Leaf bool      `json:"leaf,omitempty"`
	Blob string    `json:"blob"`
}

type outputJSON struct {
	ContractsRoot felt.Felt                  `json:"contracts_root"`
	ClassesRoot   felt.Felt                  `json:"classes_root"`
	Commitment    felt.Felt                  `json:"state_commitment"`
	StorageRoots  map[felt.Address]felt.Felt `json:"storage_roots,omitempty"`
	Facts         []factJSON                 `json:"facts"`
}

// MarshalJSON encodes the output with facts ordered by trie type then key,
// so equal outputs always produce equal documents.
func (o *Output) MarshalJSON() ([]byte, error) {
	doc := outputJSON{
		ContractsRoot: o.Roots.ContractsRoot,
		ClassesRoot:   o.Roots.ClassesRoot,
		Commitment:    o.Commitment,
		StorageRoots:  o.StorageRoots,
		Facts:         []factJSON{},
	}
	err := o.forEachFact(func(tt trieutils.TrieType, key trienode.NodeKey, fact trienode.Fact) error {
		doc.Facts = append(doc.Facts, factJSON{
			Trie: tt.String(),
			Hash: key.Hash,
			Leaf: key.Leaf,
			Blob: "0x" + hex.EncodeToString(fact.Blob),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

type factCBOR struct {
	Trie uint8
	Hash felt.Felt
	Leaf bool
	Blob []byte
}

type storageRootCBOR struct {
	Address felt.Felt
	Root    felt.Felt
}

type outputCBOR struct {
	ContractsRoot felt.Felt
	ClassesRoot   felt.Felt
	Commitment    felt.Felt
	StorageRoots  []storageRootCBOR `cbor:",omitempty"`
	Facts         []factCBOR
}

// MarshalCBOR encodes the output in canonical CBOR, byte for byte stable
// across runs.
func (o *Output) MarshalCBOR() ([]byte, error) {
	doc := outputCBOR{
		ContractsRoot: o.Roots.ContractsRoot,
		ClassesRoot:   o.Roots.ClassesRoot,
		Commitment:    o.Commitment,
	}

	for addr, root := range o.StorageRoots {
		doc.StorageRoots = append(doc.StorageRoots, storageRootCBOR{Address: felt.Felt(addr), Root: root})
	}
	slices.SortFunc(doc.StorageRoots, func(a, b storageRootCBOR) int {
		return a.Address.Cmp(&b.Address)
	})

	err := o.forEachFact(func(tt trieutils.TrieType, key trienode.NodeKey, fact trienode.Fact) error {
		doc.Facts = append(doc.Facts, factCBOR{Trie: uint8(tt), Hash: key.Hash, Leaf: key.Leaf, Blob: fact.Blob})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return encoder.Marshal(doc)
}

func (o *Output) forEachFact(cb func(trieutils.TrieType, trienode.NodeKey, trienode.Fact) error) error {
	if o.Facts == nil {
		return nil
	}
	return o.Facts.ForEach(cb)
}
