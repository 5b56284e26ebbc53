package trienode

import (
	"fmt"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

var (
	_ Node = (*BinaryNode)(nil)
	_ Node = (*EdgeNode)(nil)
	_ Node = (*LeafNode)(nil)
)

// Node is an immutable trie node. Children are referenced by hash only, so a
// node never holds another node in memory and two nodes with equal content
// always produce the same hash.
type Node interface {
	Hash(crypto.HashFn) felt.Felt
	// Blob returns the canonical encoding the node is persisted with
	Blob() ([]byte, error)
	IsLeaf() bool
	String() string
}

type (
	// Represents a binary branch node with both subtrees non-empty
	BinaryNode struct {
		Left  felt.Felt
		Right felt.Felt
	}
	// Represents a path-compressed node: a run of 1..height bits leading to
	// a single child, which is never itself an edge
	EdgeNode struct {
		Path  trieutils.BitArray
		Child felt.Felt
	}
	// Represents a leaf holding a domain payload
	LeafNode struct {
		Value Leaf
	}
)

func (n *BinaryNode) Hash(hf crypto.HashFn) felt.Felt {
	return *hf(&n.Left, &n.Right)
}

// The edge hash is H(child, path) + length, the length being added in the field.
func (n *EdgeNode) Hash(hf crypto.HashFn) felt.Felt {
	pathFelt := n.Path.Felt()
	length := felt.FromUint64(uint64(n.Path.Len()))
	return *new(felt.Felt).Add(hf(&n.Child, &pathFelt), &length)
}

func (n *LeafNode) Hash(hf crypto.HashFn) felt.Felt {
	return n.Value.Hash(hf)
}

func (n *BinaryNode) IsLeaf() bool { return false }
func (n *EdgeNode) IsLeaf() bool   { return false }
func (n *LeafNode) IsLeaf() bool   { return true }

// Child returns the hash of the subtree selected by bit
func (n *BinaryNode) Child(bit uint8) felt.Felt {
	if bit == 0 {
		return n.Left
	}
	return n.Right
}

func (n *BinaryNode) String() string {
	return fmt.Sprintf("Binary{left: %s, right: %s}", n.Left.ShortString(), n.Right.ShortString())
}

func (n *EdgeNode) String() string {
	return fmt.Sprintf("Edge{path: %s, child: %s}", n.Path.String(), n.Child.ShortString())
}

func (n *LeafNode) String() string {
	return fmt.Sprintf("Leaf(%v)", n.Value)
}
