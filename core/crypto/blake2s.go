package crypto

import (
	"slices"

	"github.com/NethermindEth/committer/core/felt"
	"golang.org/x/crypto/blake2s"
)

// Following the same implementation behind
// https://github.com/starknet-io/types-rs/blob/main/crates/starknet-types-core/src/hash/blake2s.rs

// Values below 2**63 are encoded with two words, larger ones with eight.
const smallFeltThreshold uint64 = 1 << 63

// Blake2s hashes the Starknet encoding of x and y.
func Blake2s(x, y *felt.Felt) *felt.Felt {
	return Blake2sArray(x, y)
}

// Blake2sArray hashes the Starknet encoding of felts.
func Blake2sArray(felts ...*felt.Felt) *felt.Felt {
	var digest Blake2sDigest
	return digest.Update(felts...).Finish()
}

var _ Digest = (*Blake2sDigest)(nil)

type Blake2sDigest struct {
	encoding []byte
}

func (d *Blake2sDigest) Update(elems ...*felt.Felt) Digest {
	d.encoding = append(d.encoding, encodeFeltsToBytes(elems...)...)
	return d
}

func (d *Blake2sDigest) Finish() *felt.Felt {
	sum := blake2s.Sum256(d.encoding)
	// the digest is read as a little endian integer
	slices.Reverse(sum[:])
	return new(felt.Felt).SetBytes(sum[:])
}

// encodeFeltsToBytes encode each `Felt` into bytes. Returns a slice of bytes, where each
// 4 byte word is in Little Endian Notation.
func encodeFeltsToBytes(felts ...*felt.Felt) []byte {
	encoding := encodeFeltsToUint32s(felts...)
	return encodeUint32sToBytes(encoding)
}

// encodeFeltsToUint32s encode each `Felt` into 32 bit words.
//   - Small values `< 2^63` get 2 words: `[high_32_bits, low_32_bits]`
//     from the last 8 bytes of 256-bit BE representation.
//   - Large values `>= 2^63` get 8 words: the full 32-byte big-endian
//     split, with the MSB of the first word set as a marker (+2^255)
func encodeFeltsToUint32s(felts ...*felt.Felt) []uint32 {
	const expectedCapMult = 5

	// MSB mark for the first u32 in the 8-limb case
	const largeFeltMarker uint32 = 1 << 31

	encoding := make([]uint32, 0, len(felts)*expectedCapMult)
	for _, f := range felts {
		fb := f.Uint64s()

		if fb[3] == 0 && fb[2] == 0 && fb[1] == 0 && fb[0] < smallFeltThreshold {
			val := fb[0]
			encoding = append(encoding, uint32(val>>32), uint32(val))
			continue
		}

		start := len(encoding)
		encoding = append(
			encoding,
			uint32(fb[3]>>32), uint32(fb[3]),
			uint32(fb[2]>>32), uint32(fb[2]),
			uint32(fb[1]>>32), uint32(fb[1]),
			uint32(fb[0]>>32), uint32(fb[0]),
		)
		encoding[start] |= largeFeltMarker
	}

	return encoding
}

// encodeUint32sToBytes encodes a stream of uint32 into its little endian
// byte representation
func encodeUint32sToBytes(values []uint32) []byte {
	bytes := make([]byte, len(values)*4)
	for i, val := range values {
		bytes[i*4] = byte(val)
		bytes[i*4+1] = byte(val >> 8)
		bytes[i*4+2] = byte(val >> 16)
		bytes[i*4+3] = byte(val >> 24)
	}
	return bytes
}
