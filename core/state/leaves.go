package state

import (
	"fmt"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trienode"
)

var (
	_ trienode.Leaf = (*ContractState)(nil)
	_ trienode.Leaf = (*CompiledClassLeaf)(nil)
)

const contractStateSize = 3 * felt.Bytes

var classLeafVersion = crypto.ShortString("CONTRACT_CLASS_LEAF_V0")

// ContractState is the leaf of a contract in the contracts trie.
type ContractState struct {
	ClassHash   felt.ClassHash `json:"class_hash"`
	StorageRoot felt.Felt      `json:"storage_root"`
	Nonce       felt.Felt      `json:"nonce"`
}

// Hash computes the contract commitment H(H(H(class hash, storage root), nonce), 0)
func (c *ContractState) Hash(hf crypto.HashFn) felt.Felt {
	classHash := felt.Felt(c.ClassHash)
	return *hf(hf(hf(&classHash, &c.StorageRoot), &c.Nonce), &felt.Zero)
}

// A contract with no class, no storage and no nonce is not part of the state
func (c *ContractState) IsEmpty() bool {
	return c.ClassHash.IsZero() && c.StorageRoot.IsZero() && c.Nonce.IsZero()
}

func (c *ContractState) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 0, contractStateSize)
	for _, f := range []felt.Felt{felt.Felt(c.ClassHash), c.StorageRoot, c.Nonce} {
		b := f.Bytes()
		buf = append(buf, b[:]...)
	}
	return buf, nil
}

func (c *ContractState) UnmarshalBinary(data []byte) error {
	if len(data) != contractStateSize {
		return fmt.Errorf("contract state of %d bytes, expected %d", len(data), contractStateSize)
	}
	fields := []*felt.Felt{(*felt.Felt)(&c.ClassHash), &c.StorageRoot, &c.Nonce}
	for i, f := range fields {
		if err := f.SetBytesCanonical(data[i*felt.Bytes : (i+1)*felt.Bytes]); err != nil {
			return err
		}
	}
	return nil
}

func (c *ContractState) String() string {
	return fmt.Sprintf("Contract{class: %s, storage: %s, nonce: %s}",
		c.ClassHash.String(), c.StorageRoot.ShortString(), c.Nonce.String())
}

// DecodeContractState is the LeafDecoder of the contracts trie
func DecodeContractState(data []byte) (trienode.Leaf, error) {
	c := new(ContractState)
	if err := c.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return c, nil
}

// CompiledClassLeaf binds a declared class to its compiled class hash in the
// classes trie.
type CompiledClassLeaf struct {
	CompiledClassHash felt.CasmClassHash
}

func NewCompiledClassLeaf(h felt.CasmClassHash) *CompiledClassLeaf {
	return &CompiledClassLeaf{CompiledClassHash: h}
}

// Hash is H("CONTRACT_CLASS_LEAF_V0", compiled class hash)
func (l *CompiledClassLeaf) Hash(hf crypto.HashFn) felt.Felt {
	compiled := felt.Felt(l.CompiledClassHash)
	return *hf(&classLeafVersion, &compiled)
}

func (l *CompiledClassLeaf) IsEmpty() bool {
	return l.CompiledClassHash.IsZero()
}

func (l *CompiledClassLeaf) MarshalBinary() ([]byte, error) {
	b := (*felt.Felt)(&l.CompiledClassHash).Bytes()
	return b[:], nil
}

func (l *CompiledClassLeaf) String() string {
	return l.CompiledClassHash.String()
}

// DecodeCompiledClassLeaf is the LeafDecoder of the classes trie
func DecodeCompiledClassLeaf(data []byte) (trienode.Leaf, error) {
	l := new(CompiledClassLeaf)
	if err := (*felt.Felt)(&l.CompiledClassHash).SetBytesCanonical(data); err != nil {
		return nil, fmt.Errorf("decode class leaf: %w", err)
	}
	return l, nil
}
