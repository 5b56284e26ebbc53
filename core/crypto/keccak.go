package crypto

import (
	"github.com/NethermindEth/committer/core/felt"
	"golang.org/x/crypto/sha3"
)

// StarknetKeccak implements [StarkNet keccak]
//
// [StarkNet keccak]: https://docs.starknet.io/documentation/develop/Hashing/hash-functions/#starknet_keccak
func StarknetKeccak(b []byte) (*felt.Felt, error) {
	h := sha3.NewLegacyKeccak256()
	if _, err := h.Write(b); err != nil {
		return nil, err
	}
	d := h.Sum(nil)
	// Remove the first 6 bits from the first byte
	d[0] &= 3
	return new(felt.Felt).SetBytes(d), nil
}

// ShortString encodes an ASCII string of at most 31 characters as a felt,
// the way Starknet spells domain separators such as "STARKNET_STATE_V0".
func ShortString(s string) felt.Felt {
	return felt.FromBytes([]byte(s))
}
