package state

import (
	"slices"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/core/trie"
	"github.com/NethermindEth/committer/core/trie/trienode"
	"github.com/NethermindEth/committer/core/trie/trieutils"
)

// StateDiff is the batch of writes committed on top of a previous state.
// A zero value in StorageDiffs deletes the slot, a zero compiled class hash
// removes a class from the classes trie.
type StateDiff struct {
	StorageDiffs      map[felt.Address]map[felt.Felt]felt.Felt `json:"storage_diffs"`
	Nonces            map[felt.Address]felt.Felt               `json:"nonces"`
	DeployedContracts map[felt.Address]felt.ClassHash          `json:"deployed_contracts"`
	ReplacedClasses   map[felt.Address]felt.ClassHash          `json:"replaced_classes"`
	DeclaredClasses   map[felt.ClassHash]felt.CasmClassHash    `json:"declared_classes"`
}

// Validate rejects keys outside of the tries and contracts whose class is set
// twice, before anything is hashed.
func (d *StateDiff) Validate() error {
	checkAddress := func(addr felt.Address) error {
		if (*felt.Felt)(&addr).BitLen() > trie.ContractsTrieHeight {
			return &trie.KeyError{Trie: trieutils.ContractsTrieID(), Key: felt.Felt(addr), Err: trie.ErrInvalidKey}
		}
		return nil
	}

	for addr, diff := range d.StorageDiffs {
		if err := checkAddress(addr); err != nil {
			return err
		}
		for key := range diff {
			if key.BitLen() > trie.StorageTrieHeight {
				return &trie.KeyError{Trie: trieutils.StorageTrieID(addr), Key: key, Err: trie.ErrInvalidKey}
			}
		}
	}
	for addr := range d.Nonces {
		if err := checkAddress(addr); err != nil {
			return err
		}
	}
	for addr := range d.DeployedContracts {
		if err := checkAddress(addr); err != nil {
			return err
		}
		if _, ok := d.ReplacedClasses[addr]; ok {
			return &trie.KeyError{Trie: trieutils.ContractsTrieID(), Key: felt.Felt(addr), Err: trie.ErrDuplicateKey}
		}
	}
	for addr := range d.ReplacedClasses {
		if err := checkAddress(addr); err != nil {
			return err
		}
	}
	for classHash := range d.DeclaredClasses {
		if (*felt.Felt)(&classHash).BitLen() > trie.ClassesTrieHeight {
			return &trie.KeyError{Trie: trieutils.ClassesTrieID(), Key: felt.Felt(classHash), Err: trie.ErrInvalidKey}
		}
	}
	return nil
}

// Contracts returns every address whose contract leaf the diff touches, in
// ascending order.
func (d *StateDiff) Contracts() []felt.Address {
	seen := make(map[felt.Address]struct{})
	for addr := range d.StorageDiffs {
		seen[addr] = struct{}{}
	}
	for addr := range d.Nonces {
		seen[addr] = struct{}{}
	}
	for addr := range d.DeployedContracts {
		seen[addr] = struct{}{}
	}
	for addr := range d.ReplacedClasses {
		seen[addr] = struct{}{}
	}

	addresses := make([]felt.Address, 0, len(seen))
	for addr := range seen {
		addresses = append(addresses, addr)
	}
	slices.SortFunc(addresses, func(a, b felt.Address) int {
		return a.Cmp(&b)
	})
	return addresses
}

// classHash returns the class the diff binds addr to, if any.
func (d *StateDiff) classHash(addr felt.Address) (felt.ClassHash, bool) {
	if classHash, ok := d.DeployedContracts[addr]; ok {
		return classHash, true
	}
	classHash, ok := d.ReplacedClasses[addr]
	return classHash, ok
}

func (d *StateDiff) storageUpdates(addr felt.Address) []trie.Update {
	diff := d.StorageDiffs[addr]
	updates := make([]trie.Update, 0, len(diff))
	for key, value := range diff {
		updates = append(updates, trie.Update{Key: key, Value: trienode.NewValueLeaf(value)})
	}
	return updates
}

func (d *StateDiff) classUpdates() []trie.Update {
	updates := make([]trie.Update, 0, len(d.DeclaredClasses))
	for classHash, compiled := range d.DeclaredClasses {
		updates = append(updates, trie.Update{Key: felt.Felt(classHash), Value: NewCompiledClassLeaf(compiled)})
	}
	return updates
}
