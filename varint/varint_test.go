package varint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []uint32{0, 1, 127, 128, 300, 16383, 16384, 2097151, 2097152, 1<<32 - 1}
	for _, v := range values {
		encoded := Encode(v, nil)
		assert.GreaterOrEqual(t, len(encoded), 1)
		assert.LessOrEqual(t, len(encoded), 5)

		got, consumed, err := Decode(encoded, 0)
		require.NoError(t, err)
		assert.Equal(t, v, got)
		assert.Equal(t, len(encoded), consumed)
	}
}

func TestDecodeNeedMoreInput(t *testing.T) {
	full := Encode(16384, nil)
	require.Len(t, full, 3)

	for i := 0; i < len(full); i++ {
		_, _, err := Decode(full[:i], 0)
		assert.ErrorIs(t, err, ErrNeedMoreInput)
	}
}

func TestDecodeMalformedOverlong(t *testing.T) {
	// Six bytes, all with the continuation bit set: no terminator within
	// the 5-byte budget for a 32-bit value.
	overlong := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	_, _, err := Decode(overlong, 0)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeWithOffset(t *testing.T) {
	buf := append([]byte{0xAA, 0xBB}, Encode(300, nil)...)
	got, consumed, err := Decode(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(300), got)
	assert.Equal(t, 2, consumed)
}

func TestEncodeAppendsToExisting(t *testing.T) {
	out := []byte{0x01, 0x02}
	out = Encode(5, out)
	assert.Equal(t, []byte{0x01, 0x02, 0x05}, out)
}
