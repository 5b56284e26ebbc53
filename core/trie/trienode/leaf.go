package trienode

import (
	"fmt"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
)

// Leaf is the domain payload stored at full key depth. Each trie type
// supplies its own leaf with its own hash rule.
type Leaf interface {
	Hash(crypto.HashFn) felt.Felt
	// IsEmpty reports whether writing the leaf deletes its key
	IsEmpty() bool
	MarshalBinary() ([]byte, error)
}

// LeafDecoder reconstructs a leaf from its MarshalBinary output.
type LeafDecoder func([]byte) (Leaf, error)

var _ Leaf = (*ValueLeaf)(nil)

// ValueLeaf is a leaf whose hash is the stored value itself, as in contract
// storage tries.
type ValueLeaf struct {
	felt.Felt
}

func NewValueLeaf(v felt.Felt) *ValueLeaf {
	return &ValueLeaf{Felt: v}
}

func (l *ValueLeaf) Hash(crypto.HashFn) felt.Felt { return l.Felt }
func (l *ValueLeaf) IsEmpty() bool                { return l.Felt.IsZero() }

func (l *ValueLeaf) MarshalBinary() ([]byte, error) {
	b := l.Felt.Bytes()
	return b[:], nil
}

func (l *ValueLeaf) String() string {
	return l.Felt.String()
}

// DecodeValueLeaf is the LeafDecoder of ValueLeaf
func DecodeValueLeaf(data []byte) (Leaf, error) {
	var l ValueLeaf
	if err := l.Felt.SetBytesCanonical(data); err != nil {
		return nil, fmt.Errorf("decode value leaf: %w", err)
	}
	return &l, nil
}
