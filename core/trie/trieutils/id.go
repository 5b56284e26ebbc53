package trieutils

import (
	"fmt"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/db"
)

type TrieType uint8

const (
	ContractStorageTrie TrieType = iota
	ContractsTrie
	ClassesTrie
)

// TrieTypes lists every trie type of the forest in a fixed order.
var TrieTypes = []TrieType{ContractStorageTrie, ContractsTrie, ClassesTrie}

func (t TrieType) String() string {
	switch t {
	case ContractStorageTrie:
		return "ContractStorageTrie"
	case ContractsTrie:
		return "ContractsTrie"
	case ClassesTrie:
		return "ClassesTrie"
	default:
		return fmt.Sprintf("TrieType(%d)", uint8(t))
	}
}

// Returns the corresponding DB bucket for the trie type
func (t TrieType) Bucket() db.Bucket {
	switch t {
	case ContractStorageTrie:
		return db.ContractStorageTrie
	case ContractsTrie:
		return db.ContractsTrie
	case ClassesTrie:
		return db.ClassesTrie
	default:
		panic("invalid trie type")
	}
}

// Represents the identifier of a trie for logging and error reporting.
// Nodes are content addressed, so the owner never takes part in storage keys.
type ID struct {
	Type  TrieType
	Owner felt.Address // The contract address owning a storage trie
}

// Constructs an identifier for a contract's storage trie
func StorageTrieID(owner felt.Address) ID {
	return ID{Type: ContractStorageTrie, Owner: owner}
}

// Constructs an identifier for the global contracts trie
func ContractsTrieID() ID {
	return ID{Type: ContractsTrie}
}

// Constructs an identifier for the classes trie
func ClassesTrieID() ID {
	return ID{Type: ClassesTrie}
}

func (id ID) String() string {
	if id.Owner.IsZero() {
		return id.Type.String()
	}
	return fmt.Sprintf("%s(%s)", id.Type, id.Owner.String())
}
