package felt

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/fxamacker/cbor/v2"
)

type Felt struct {
	val fp.Element
}

func NewFelt(element *fp.Element) *Felt {
	return &Felt{
		val: *element,
	}
}

const (
	Limbs = fp.Limbs // number of 64 bits words needed to represent a Element
	Bits  = fp.Bits  // number of bits needed to represent a Element
	Bytes = fp.Bytes // number of bytes needed to represent a Element
)

var (
	// zero felt constant
	Zero = Felt{}
	One  = FromUint64(1)
)

var ErrNonCanonical = errors.New("value is not a canonical field element")

var bigIntPool = sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

// FromUint64 returns a felt holding v
func FromUint64(v uint64) Felt {
	var f Felt
	f.val.SetUint64(v)
	return f
}

// FromBytes interprets b as a big-endian integer reduced modulo the field prime
func FromBytes(b []byte) Felt {
	var f Felt
	f.val.SetBytes(b)
	return f
}

// FromString parses a decimal or 0x-prefixed hex string
func FromString(s string) (Felt, error) {
	var f Felt
	_, err := f.SetString(s)
	return f, err
}

// Impl returns the underlying field element type
func (z *Felt) Impl() *fp.Element {
	return &z.val
}

// UnmarshalJSON accepts numbers and strings as input.
// See Element.SetString for valid prefixes (0x, 0b, ...).
// If there is an error, we try to explicitly unmarshal from hex before
// returning an error. This implementation is taken from [gnark-crypto].
//
// [gnark-crypto]: https://github.com/ConsenSys/gnark-crypto/blob/9fd0a7de2044f088a29cfac373da73d868230148/ecc/stark-curve/fp/element.go#L1028-L1056
func (z *Felt) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) > fp.Bits*3 {
		return errors.New("value too large (max = Element.Bits * 3)")
	}

	// we accept numbers and strings, remove leading and trailing quotes if any
	if len(s) > 0 && s[0] == '"' {
		s = s[1:]
	}
	if len(s) > 0 && s[len(s)-1] == '"' {
		s = s[:len(s)-1]
	}

	// get temporary big int from the pool
	vv := bigIntPool.Get().(*big.Int)
	defer bigIntPool.Put(vv)

	if _, ok := vv.SetString(s, 0); !ok {
		if _, ok := vv.SetString(s, 16); !ok {
			return errors.New("can't parse into a big.Int: " + s)
		}
	}
	if vv.Sign() < 0 || vv.Cmp(fp.Modulus()) >= 0 {
		return ErrNonCanonical
	}

	z.val.SetBigInt(vv)
	return nil
}

// MarshalJSON encodes the felt as a quoted 0x-prefixed hex string
func (z Felt) MarshalJSON() ([]byte, error) {
	return []byte(`"` + z.String() + `"`), nil
}

// MarshalText lets felts key JSON objects
func (z Felt) MarshalText() ([]byte, error) {
	return []byte(z.String()), nil
}

func (z *Felt) UnmarshalText(text []byte) error {
	return z.UnmarshalJSON(text)
}

func (z Felt) MarshalCBOR() ([]byte, error) {
	b := z.val.Bytes()
	return cbor.Marshal(b[:])
}

func (z *Felt) UnmarshalCBOR(data []byte) error {
	var b []byte
	if err := cbor.Unmarshal(data, &b); err != nil {
		return err
	}
	return z.SetBytesCanonical(b)
}

// SetBytes interprets e as a big-endian integer reduced modulo the field prime
func (z *Felt) SetBytes(e []byte) *Felt {
	z.val.SetBytes(e)
	return z
}

// SetBytesCanonical sets z from exactly Bytes big-endian bytes and fails
// when the encoded integer is not below the field prime.
func (z *Felt) SetBytesCanonical(e []byte) error {
	if len(e) != Bytes {
		return ErrNonCanonical
	}
	vv := bigIntPool.Get().(*big.Int)
	defer bigIntPool.Put(vv)

	vv.SetBytes(e)
	if vv.Cmp(fp.Modulus()) >= 0 {
		return ErrNonCanonical
	}
	z.val.SetBigInt(vv)
	return nil
}

// SetString forwards the call to underlying field element implementation
func (z *Felt) SetString(number string) (*Felt, error) {
	_, err := z.val.SetString(number)
	return z, err
}

// SetUint64 forwards the call to underlying field element implementation
func (z *Felt) SetUint64(v uint64) *Felt {
	z.val.SetUint64(v)
	return z
}

// SetRandom forwards the call to underlying field element implementation
func (z *Felt) SetRandom() (*Felt, error) {
	_, err := z.val.SetRandom()
	return z, err
}

// String returns the 0x-prefixed hex representation
func (z *Felt) String() string {
	return "0x" + z.val.Text(16)
}

// ShortString returns a shortened hex representation for logs
func (z *Felt) ShortString() string {
	hex := z.val.Text(16)
	if len(hex) <= 8 {
		return "0x" + hex
	}
	return "0x" + hex[:4] + "..." + hex[len(hex)-4:]
}

// Text forwards the call to underlying field element implementation
func (z *Felt) Text(base int) string {
	return z.val.Text(base)
}

// Equal forwards the call to underlying field element implementation
func (z *Felt) Equal(x *Felt) bool {
	return z.val.Equal(&x.val)
}

// Marshal forwards the call to underlying field element implementation
func (z *Felt) Marshal() []byte {
	return z.val.Marshal()
}

// Bytes forwards the call to underlying field element implementation
func (z *Felt) Bytes() [32]byte {
	return z.val.Bytes()
}

// Uint64s returns the regular (non-Montgomery) value as little-endian 64-bit words
func (z *Felt) Uint64s() [Limbs]uint64 {
	b := z.val.Bytes()
	var words [Limbs]uint64
	for i := range Limbs {
		words[i] = binary.BigEndian.Uint64(b[Bytes-8*(i+1) : Bytes-8*i])
	}
	return words
}

// BitLen returns the minimum number of bits needed to represent z
func (z *Felt) BitLen() int {
	return z.val.BitLen()
}

// IsZero forwards the call to underlying field element implementation
func (z *Felt) IsZero() bool {
	return z.val.IsZero()
}

// Bit returns the i-th bit of the regular representation, counted from the LSB
func (z *Felt) Bit(i uint64) uint64 {
	if i >= Limbs*64 {
		return 0
	}
	words := z.Uint64s()
	return (words[i/64] >> (i % 64)) & 1
}

// Add forwards the call to underlying field element implementation
func (z *Felt) Add(x, y *Felt) *Felt {
	z.val.Add(&x.val, &y.val)
	return z
}

// Cmp forwards the call to underlying field element implementation
func (z *Felt) Cmp(x *Felt) int {
	return z.val.Cmp(&x.val)
}
