package trienode

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

// ErrConflict is returned when one hash is bound to two different encodings.
var ErrConflict = errors.New("conflicting node for hash")

// NodeKey addresses a fact inside one trie type. Leaves and inner nodes live
// in separate namespaces, as a storage leaf hash is its raw value.
type NodeKey struct {
	Hash felt.Felt
	Leaf bool
}

func (k NodeKey) Cmp(other NodeKey) int {
	if k.Leaf != other.Leaf {
		if k.Leaf {
			return 1
		}
		return -1
	}
	return k.Hash.Cmp(&other.Hash)
}

// Fact is a newly created node together with its canonical encoding.
type Fact struct {
	Node Node
	Blob []byte
}

// Contains the facts created by committing a single trie type, deduplicated
// by content hash. It is not thread safe.
type NodeSet struct {
	Type  trieutils.TrieType
	Nodes map[NodeKey]Fact
}

func NewNodeSet(tt trieutils.TrieType) *NodeSet {
	return &NodeSet{Type: tt, Nodes: make(map[NodeKey]Fact)}
}

// Add records node under hash. Adding an identical fact twice is a no-op,
// binding the hash to different contents fails with ErrConflict.
func (ns *NodeSet) Add(hash felt.Felt, node Node) error {
	blob, err := node.Blob()
	if err != nil {
		return err
	}
	return ns.add(NodeKey{Hash: hash, Leaf: node.IsLeaf()}, Fact{Node: node, Blob: blob})
}

func (ns *NodeSet) add(key NodeKey, fact Fact) error {
	if prev, ok := ns.Nodes[key]; ok {
		if !bytes.Equal(prev.Blob, fact.Blob) {
			return fmt.Errorf("%w %s in %s", ErrConflict, key.Hash.String(), ns.Type)
		}
		return nil
	}
	ns.Nodes[key] = fact
	return nil
}

func (ns *NodeSet) Len() int {
	return len(ns.Nodes)
}

// Get returns the fact stored under key, if any.
func (ns *NodeSet) Get(key NodeKey) (Fact, bool) {
	fact, ok := ns.Nodes[key]
	return fact, ok
}

// Keys returns the fact keys in ascending order, inner nodes first.
func (ns *NodeSet) Keys() []NodeKey {
	keys := make([]NodeKey, 0, len(ns.Nodes))
	for key := range ns.Nodes {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, NodeKey.Cmp)
	return keys
}

// Iterates over the facts in key order and calls the callback for each one.
func (ns *NodeSet) ForEach(callback func(key NodeKey, fact Fact) error) error {
	for _, key := range ns.Keys() {
		if err := callback(key, ns.Nodes[key]); err != nil {
			return err
		}
	}
	return nil
}

// Merges the other node set into the current node set.
// Both node sets must belong to the same trie type.
func (ns *NodeSet) MergeSet(other *NodeSet) error {
	if other == nil {
		return nil
	}
	if ns.Type != other.Type {
		return fmt.Errorf("cannot merge node sets of different tries %s-%s", ns.Type, other.Type)
	}
	for key, fact := range other.Nodes {
		if err := ns.add(key, fact); err != nil {
			return err
		}
	}
	return nil
}

// MergeNodeSet gathers the facts of every trie committed in one forest update.
type MergeNodeSet struct {
	Sets map[trieutils.TrieType]*NodeSet
}

func NewMergeNodeSet() *MergeNodeSet {
	return &MergeNodeSet{Sets: make(map[trieutils.TrieType]*NodeSet)}
}

// Merge folds set into the facts of its trie type.
func (m *MergeNodeSet) Merge(set *NodeSet) error {
	if set == nil {
		return nil
	}
	existing, ok := m.Sets[set.Type]
	if !ok {
		existing = NewNodeSet(set.Type)
		m.Sets[set.Type] = existing
	}
	return existing.MergeSet(set)
}

// Set returns the facts of trie type tt, which may be nil.
func (m *MergeNodeSet) Set(tt trieutils.TrieType) *NodeSet {
	return m.Sets[tt]
}

// Len returns the total number of facts across all trie types.
func (m *MergeNodeSet) Len() int {
	total := 0
	for _, set := range m.Sets {
		total += set.Len()
	}
	return total
}

// Iterates over every fact, trie types in declaration order and keys ascending.
func (m *MergeNodeSet) ForEach(callback func(tt trieutils.TrieType, key NodeKey, fact Fact) error) error {
	for _, tt := range trieutils.TrieTypes {
		set, ok := m.Sets[tt]
		if !ok {
			continue
		}
		if err := set.ForEach(func(key NodeKey, fact Fact) error {
			return callback(tt, key, fact)
		}); err != nil {
			return err
		}
	}
	return nil
}
