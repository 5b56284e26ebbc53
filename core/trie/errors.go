package trie

import (
	"errors"
	"fmt"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

var (
	ErrInvalidKey   = errors.New("key out of range for trie height")
	ErrDuplicateKey = errors.New("duplicate key in update batch")
	ErrInvalidProof = errors.New("invalid proof")
)

// KeyError reports the key an update batch was rejected for.
type KeyError struct {
	Trie trieutils.ID
	Key  felt.Felt
	Err  error
}

func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: key %s: %v", e.Trie, e.Key.String(), e.Err)
}

func (e *KeyError) Unwrap() error {
	return e.Err
}

// MissingNodeError is returned when a hash referenced by the trie cannot be
// resolved. It means the store is incomplete and the commit cannot proceed.
type MissingNodeError struct {
	Trie trieutils.ID
	Path Path // position of the node, from the root
	Hash felt.Felt
	err  error
}

func (e *MissingNodeError) Error() string {
	return fmt.Sprintf("%s: missing trie node (path %s, hash %s): %v", e.Trie, e.Path.String(), e.Hash.String(), e.err)
}

func (e *MissingNodeError) Unwrap() error {
	return e.err
}
