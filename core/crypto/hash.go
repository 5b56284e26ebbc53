package crypto

import (
	"fmt"
	"strings"

	"github.com/NethermindEth/committer/core/felt"
)

// HashFn is a two-to-one hash over field elements. It is the only primitive
// the trie needs to hash binary and edge nodes.
type HashFn func(*felt.Felt, *felt.Felt) *felt.Felt

// ArrayHashFn hashes a variable number of field elements.
type ArrayHashFn func(...*felt.Felt) *felt.Felt

const (
	PedersenName = "pedersen"
	Blake2sName  = "blake2s"
)

// HashNames lists the names accepted by [HashByName] and [ArrayHashByName].
var HashNames = []string{PedersenName, Blake2sName}

// HashByName resolves a configured hash function name.
func HashByName(name string) (HashFn, error) {
	switch strings.ToLower(name) {
	case PedersenName:
		return Pedersen, nil
	case Blake2sName:
		return Blake2s, nil
	default:
		return nil, fmt.Errorf("unknown hash function %q (known: %s)", name, strings.Join(HashNames, ", "))
	}
}

// ArrayHashByName resolves a configured array hash function name.
func ArrayHashByName(name string) (ArrayHashFn, error) {
	switch strings.ToLower(name) {
	case PedersenName:
		return PedersenArray, nil
	case Blake2sName:
		return Blake2sArray, nil
	default:
		return nil, fmt.Errorf("unknown hash function %q (known: %s)", name, strings.Join(HashNames, ", "))
	}
}
