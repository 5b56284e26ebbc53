package trie

import (
	"context"
	"fmt"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

// Prove returns the nodes on the path from root to key, root first. If the key
// is present the last node is its leaf, otherwise the path ends at the node
// where key leaves the trie.
func (t *Trie) Prove(ctx context.Context, root, key felt.Felt) ([]trienode.Node, error) {
	var proof []trienode.Node
	if err := t.walk(ctx, root, key, func(n trienode.Node) {
		proof = append(proof, n)
	}); err != nil {
		return nil, err
	}
	return proof, nil
}

// VerifyProof checks that proof is a path from root towards key in a trie of
// the given height and returns the leaf hash of key, or zero if the proof
// shows the key is absent.
//
// The proof is invalid if:
//   - a node does not hash to the hash its parent references
//   - a node is found past the end of the path or after a diverging edge
//   - the proof stops before reaching either the key or a divergence
func VerifyProof(root, key felt.Felt, height uint8, hashFn crypto.HashFn, proof []trienode.Node) (felt.Felt, error) {
	if key.BitLen() > int(height) {
		return felt.Zero, ErrInvalidKey
	}
	path := trieutils.FeltToBitArray(height, &key)

	var (
		expected = root
		depth    uint8
	)
	for i, n := range proof {
		if expected.IsZero() {
			return felt.Zero, fmt.Errorf("%w: node %d is past the end of the path", ErrInvalidProof, i)
		}
		if hash := n.Hash(hashFn); hash != expected {
			return felt.Zero, fmt.Errorf("%w: node %d hash mismatch, expected %s, got %s",
				ErrInvalidProof, i, expected.String(), hash.String())
		}
		last := i == len(proof)-1

		switch n := n.(type) {
		case *trienode.LeafNode:
			if depth != height || !last {
				return felt.Zero, fmt.Errorf("%w: leaf at depth %d", ErrInvalidProof, depth)
			}
			return expected, nil
		case *trienode.BinaryNode:
			if depth >= height {
				return felt.Zero, fmt.Errorf("%w: binary node at depth %d", ErrInvalidProof, depth)
			}
			expected = n.Child(path.Bit(depth))
			depth++
		case *trienode.EdgeNode:
			if uint16(depth)+uint16(n.Path.Len()) > uint16(height) {
				return felt.Zero, fmt.Errorf("%w: edge runs past height %d", ErrInvalidProof, height)
			}
			var segment Path
			segment.Subset(&path, depth, depth+n.Path.Len())
			if !segment.Equal(&n.Path) {
				if !last {
					return felt.Zero, fmt.Errorf("%w: nodes after a diverging edge", ErrInvalidProof)
				}
				return felt.Zero, nil
			}
			expected = n.Child
			depth += n.Path.Len()
		default:
			return felt.Zero, fmt.Errorf("%w: unknown node %T", ErrInvalidProof, n)
		}
	}

	switch {
	case expected.IsZero():
		return felt.Zero, nil
	case depth == height:
		// the leaf itself may be left out, its hash is already bound
		return expected, nil
	default:
		return felt.Zero, fmt.Errorf("%w: proof ends at depth %d", ErrInvalidProof, depth)
	}
}
