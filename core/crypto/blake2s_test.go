package crypto

import (
	"testing"

	"github.com/NethermindEth/committer/core/felt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFeltsToUint32s(t *testing.T) {
	t.Run("small felt uses two words", func(t *testing.T) {
		f := felt.FromUint64(0x1122334455667788)
		assert.Equal(t, []uint32{0x11223344, 0x55667788}, encodeFeltsToUint32s(&f))
	})

	t.Run("threshold switches to eight words with marker", func(t *testing.T) {
		f := felt.FromUint64(1 << 63)
		words := encodeFeltsToUint32s(&f)
		require.Len(t, words, 8)
		assert.Equal(t, uint32(1<<31), words[0])
		assert.Equal(t, uint32(1<<31), words[6])
		assert.Equal(t, uint32(0), words[7])
	})

	t.Run("large felt keeps all limbs", func(t *testing.T) {
		f, err := felt.FromString("0x100000000000000000000000000000001")
		require.NoError(t, err)
		words := encodeFeltsToUint32s(&f)
		assert.Equal(t, []uint32{1 << 31, 0, 0, 1, 0, 0, 0, 1}, words)
	})

	t.Run("mixed sequence", func(t *testing.T) {
		small := felt.FromUint64(7)
		large := felt.FromUint64(^uint64(0))
		words := encodeFeltsToUint32s(&small, &large)
		assert.Len(t, words, 10)
		assert.Equal(t, []uint32{0, 7}, words[:2])
	})
}

func TestEncodeUint32sToBytes(t *testing.T) {
	assert.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 0xff, 0, 0, 0}, encodeUint32sToBytes([]uint32{0x01020304, 0xff}))
}

func TestBlake2s(t *testing.T) {
	a := felt.FromUint64(1)
	b := felt.FromUint64(2)

	h1 := Blake2s(&a, &b)
	h2 := Blake2sArray(&a, &b)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, Blake2s(&b, &a))

	var d Blake2sDigest
	d.Update(&a)
	d.Update(&b)
	assert.Equal(t, h1, d.Finish())
}
