package trieutils

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"strings"

	"github.com/NethermindEth/committer/core/felt"
)

const (
	maxUint64 = uint64(math.MaxUint64)
	// MaxBitArraySize is the largest encoding produced by EncodedBytes
	MaxBitArraySize = 33 // (1 + 4 * 8) bytes
	// MaxLen is the longest bit array, enough for a 251 bit trie key
	MaxLen = 251
)

var errEmptyEncoding = errors.New("empty bit array encoding")

// Represents a bit array with length representing the number of used bits.
// Words are little endian (words[0] holds the least significant bits) while
// positions passed to Bit, MSBs and Subset count from the most significant
// used bit. A bit array of length 10 uses bits 2^9 down to 2^0.
//
// It is the path type of the trie: full keys are bit arrays whose length
// equals the trie height, edge paths are bit arrays of 1 to height bits.
type BitArray struct {
	len   uint8     // number of used bits
	words [4]uint64 // little endian (i.e. words[0] is the least significant)
}

func NewBitArray(length uint8, val uint64) BitArray {
	var b BitArray
	b.SetUint64(length, val)
	return b
}

// FeltToBitArray returns the bit array of the lowest length bits of f
func FeltToBitArray(length uint8, f *felt.Felt) BitArray {
	var b BitArray
	b.SetFelt(length, f)
	return b
}

// Returns the felt representation of the bit array.
func (b *BitArray) Felt() felt.Felt {
	bt := b.Bytes()
	return felt.FromBytes(bt[:])
}

func (b *BitArray) Len() uint8 {
	return b.len
}

func (b *BitArray) IsEmpty() bool {
	return b.len == 0
}

// Returns the bytes representation of the bit array in big endian format
func (b *BitArray) Bytes() [32]byte {
	var res [32]byte
	for i := range 4 {
		binary.BigEndian.PutUint64(res[24-8*i:32-8*i], b.words[i])
	}
	return res
}

// Sets the bit array to the same value as x.
func (b *BitArray) Set(x *BitArray) *BitArray {
	*b = *x
	return b
}

// Returns a copy of the bit array.
func (b *BitArray) Copy() BitArray {
	return *b
}

// Sets the bit array to the lowest length bits of f.
func (b *BitArray) SetFelt(length uint8, f *felt.Felt) *BitArray {
	bt := f.Bytes()
	b.setBytes32(bt[:])
	b.len = length
	b.truncateToLength()
	return b
}

// Sets the bit array to the lowest length bits of v.
func (b *BitArray) SetUint64(length uint8, v uint64) *BitArray {
	b.words = [4]uint64{v, 0, 0, 0}
	b.len = length
	b.truncateToLength()
	return b
}

// Sets the bit array to a single bit.
func (b *BitArray) SetBit(bit uint8) *BitArray {
	return b.SetUint64(1, uint64(bit&1))
}

// Returns the bit value at position n, where n = 0 is the MSB.
// If n is out of bounds, returns 0.
func (b *BitArray) Bit(n uint8) uint8 {
	if n >= b.len {
		return 0
	}
	return b.bitFromLSB(b.len - n - 1)
}

// Returns the bit value at the most significant bit
func (b *BitArray) MSB() uint8 {
	return b.Bit(0)
}

func (b *BitArray) bitFromLSB(n uint8) uint8 {
	return uint8((b.words[n/64] >> (n % 64)) & 1)
}

// Sets the bit array to x >> n, dropping the n least significant bits.
func (b *BitArray) Rsh(x *BitArray, n uint8) *BitArray {
	if n >= x.len {
		return b.clear()
	}

	length := x.len - n
	wordShift, bitShift := int(n/64), n%64
	var out [4]uint64
	for i := 0; i+wordShift < 4; i++ {
		out[i] = x.words[i+wordShift] >> bitShift
		if bitShift > 0 && i+wordShift+1 < 4 {
			out[i] |= x.words[i+wordShift+1] << (64 - bitShift)
		}
	}
	b.words, b.len = out, length
	b.truncateToLength()
	return b
}

// Sets the bit array to x << n, appending n zero bits. The length saturates
// at 255 bits.
func (b *BitArray) Lsh(x *BitArray, n uint8) *BitArray {
	if n == 0 {
		return b.Set(x)
	}

	length := uint16(x.len) + uint16(n)
	if length > math.MaxUint8 {
		length = math.MaxUint8
	}
	wordShift, bitShift := int(n/64), n%64
	var out [4]uint64
	for i := 3; i-wordShift >= 0; i-- {
		out[i] = x.words[i-wordShift] << bitShift
		if bitShift > 0 && i-wordShift-1 >= 0 {
			out[i] |= x.words[i-wordShift-1] >> (64 - bitShift)
		}
	}
	b.words, b.len = out, uint8(length)
	b.truncateToLength()
	return b
}

// Sets the bit array to the n most significant bits of x.
// Think of this method as array[:n]
// For example:
//
//	x = 11001011 (len=8)
//	MSBs(x, 4) = 1100 (len=4)
//	MSBs(x, 10) = 11001011 (len=8)
func (b *BitArray) MSBs(x *BitArray, n uint8) *BitArray {
	if n >= x.len {
		return b.Set(x)
	}
	return b.Rsh(x, x.len-n)
}

// Sets the bit array to x without its n most significant bits.
// Think of this method as array[n:]
// For example:
//
//	x = 11001011 (len=8)
//	LSBs(x, 1) = 1001011 (len=7)
//	LSBs(x, 10) = empty
func (b *BitArray) LSBs(x *BitArray, n uint8) *BitArray {
	if n >= x.len {
		return b.clear()
	}
	b.Set(x)
	b.len = x.len - n
	b.truncateToLength()
	return b
}

// Sets the bit array to x[start:end], with positions counted from the MSB.
// For example:
//
//	x = 001011011 (len=9)
//	Subset(x, 2, 5) = 101 (len=3)
func (b *BitArray) Subset(x *BitArray, start, end uint8) *BitArray {
	end = min(end, x.len)
	if start >= end {
		return b.clear()
	}
	return b.LSBs(x, start).MSBs(b, end-start)
}

// Sets the bit array to the concatenation of x and y.
// For example:
//
//	x = 000 (len=3)
//	y = 111 (len=3)
//	Append(x,y) = 000111 (len=6)
func (b *BitArray) Append(x, y *BitArray) *BitArray {
	yCopy := *y
	b.Lsh(x, y.len)
	for i := range 4 {
		b.words[i] |= yCopy.words[i]
	}
	return b
}

// Sets the bit array to the concatenation of x and a single bit.
func (b *BitArray) AppendBit(x *BitArray, bit uint8) *BitArray {
	return b.Append(x, new(BitArray).SetBit(bit))
}

// Sets the bit array to a single bit followed by x.
func (b *BitArray) PrependBit(bit uint8, x *BitArray) *BitArray {
	return b.Append(new(BitArray).SetBit(bit), x)
}

// CommonMSBsLen returns the number of leading bits shared by x and y.
// For example:
//
//	x = 1101 0111 (len=8)
//	y = 1101 00   (len=6)
//	CommonMSBsLen(x,y) = 5
func CommonMSBsLen(x, y *BitArray) uint8 {
	short := min(x.len, y.len)
	var a, c BitArray
	a.MSBs(x, short)
	c.MSBs(y, short)
	for i := 3; i >= 0; i-- {
		if diff := a.words[i] ^ c.words[i]; diff != 0 {
			highestDiff := uint8(i*64 + 63 - bits.LeadingZeros64(diff))
			return short - highestDiff - 1
		}
	}
	return short
}

// Sets the bit array to the longest common prefix of x and y.
func (b *BitArray) CommonMSBs(x, y *BitArray) *BitArray {
	return b.MSBs(x, CommonMSBsLen(x, y))
}

// Checks if two bit arrays are equal
func (b *BitArray) Equal(x *BitArray) bool {
	return b.len == x.len && b.words == x.words
}

// Cmp compares two bit arrays, first by length, then by value.
func (b *BitArray) Cmp(x *BitArray) int {
	if b.len != x.len {
		if b.len < x.len {
			return -1
		}
		return 1
	}
	for i := 3; i >= 0; i-- {
		switch {
		case b.words[i] < x.words[i]:
			return -1
		case b.words[i] > x.words[i]:
			return 1
		}
	}
	return 0
}

// Returns the minimal encoding of the bit array: the used bytes in big endian
// order followed by one length byte.
//
// Example:
//
//	BitArray{len: 10, words: [4]uint64{0x03FF}} -> [0x03, 0xFF, 0x0A]
func (b *BitArray) EncodedBytes() []byte {
	bt := b.Bytes()
	out := make([]byte, 0, b.EncodedLen())
	out = append(out, bt[32-b.activeBytes():]...)
	return append(out, b.len)
}

// Returns the length of the encoded bit array in bytes.
func (b *BitArray) EncodedLen() int {
	return b.activeBytes() + 1
}

// UnmarshalBinary decodes the output of EncodedBytes.
func (b *BitArray) UnmarshalBinary(data []byte) error {
	if len(data) == 0 {
		return errEmptyEncoding
	}

	length := data[len(data)-1]
	body := data[:len(data)-1]
	if want := (int(length) + 7) / 8; len(body) != want {
		return fmt.Errorf("invalid bit array encoding: got %d bytes, expected %d", len(body), want)
	}

	var bs [32]byte
	copy(bs[32-len(body):], body)
	b.setBytes32(bs[:])
	b.len = length
	truncated := *b
	truncated.truncateToLength()
	if truncated.words != b.words {
		return fmt.Errorf("invalid bit array encoding: bits set beyond length %d", length)
	}
	return nil
}

// Returns the bits as a string of 0s and 1s, MSB first.
func (b *BitArray) String() string {
	var sb strings.Builder
	sb.Grow(int(b.len))
	for i := range b.len {
		sb.WriteByte('0' + b.Bit(i))
	}
	return sb.String()
}

// Returns a compact hex representation for logging.
func (b *BitArray) HexString() string {
	bt := b.Bytes()
	return fmt.Sprintf("(%d) %s", b.len, hex.EncodeToString(bt[32-b.activeBytes():]))
}

func (b *BitArray) setBytes32(data []byte) {
	_ = data[31] // bound check hint, see https://golang.org/issue/14808
	for i := range 4 {
		b.words[i] = binary.BigEndian.Uint64(data[24-8*i : 32-8*i])
	}
}

// Returns the minimum number of bytes needed to represent the bit array.
func (b *BitArray) activeBytes() int {
	return (int(b.len) + 7) / 8
}

func (b *BitArray) clear() *BitArray {
	*b = BitArray{}
	return b
}

// Zeroes every bit at or above position len.
func (b *BitArray) truncateToLength() {
	for i := range 4 {
		lo := uint16(i * 64)
		switch {
		case uint16(b.len) <= lo:
			b.words[i] = 0
		case uint16(b.len) < lo+64:
			b.words[i] &= maxUint64 >> (lo + 64 - uint16(b.len))
		}
	}
}
