package state

import (
	"fmt"

	"github.com/NethermindEth/committer/core/crypto"
	"github.com/NethermindEth/committer/core/felt"
	"github.com/NethermindEth/committer/db"
)

const rootsSize = 2 * felt.Bytes

var stateVersion = crypto.ShortString("STARKNET_STATE_V0")

// Roots are the roots of the global tries of one committed state. The zero
// value is the genesis state.
type Roots struct {
	ContractsRoot felt.Felt `json:"contracts_root"`
	ClassesRoot   felt.Felt `json:"classes_root"`
}

// Commitment returns the global state commitment: the contracts root alone
// while no class was ever declared, H(STARKNET_STATE_V0, contracts, classes)
// afterwards.
func (r *Roots) Commitment(hashArray crypto.ArrayHashFn) felt.Felt {
	if r.ClassesRoot.IsZero() {
		return r.ContractsRoot
	}
	return *hashArray(&stateVersion, &r.ContractsRoot, &r.ClassesRoot)
}

func (r *Roots) MarshalBinary() ([]byte, error) {
	contracts, classes := r.ContractsRoot.Bytes(), r.ClassesRoot.Bytes()
	return append(contracts[:], classes[:]...), nil
}

func (r *Roots) UnmarshalBinary(data []byte) error {
	if len(data) != rootsSize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidRootsRecord, len(data))
	}
	if err := r.ContractsRoot.SetBytesCanonical(data[:felt.Bytes]); err != nil {
		return err
	}
	return r.ClassesRoot.SetBytesCanonical(data[felt.Bytes:])
}

// rootsKey is the key of the roots record of commitment
func rootsKey(commitment *felt.Felt) []byte {
	return db.StateRoots.Key(commitment.Marshal())
}
