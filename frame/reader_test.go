package frame

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// oneByteReader forces every Read to return at most one byte, regardless of
// how large the caller's buffer is.
type oneByteReader struct {
	buf []byte
}

func (r *oneByteReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		return 0, io.EOF
	}
	p[0] = r.buf[0]
	r.buf = r.buf[1:]
	return 1, nil
}

func sessionOpener(tag byte, payload []byte) []byte {
	var out []byte
	out = append(out, CurrentVersion, tag)
	out = encodeSize(uint32(len(payload)), out)
	return append(out, payload...)
}

func subsequentFrame(tag byte, payload []byte) []byte {
	var out []byte
	out = append(out, tag)
	out = encodeSize(uint32(len(payload)), out)
	return append(out, payload...)
}

func encodeSize(v uint32, out []byte) []byte {
	for v >= 0x80 {
		out = append(out, byte(v)|0x80)
		v >>= 7
	}
	return append(out, byte(v))
}

func TestReadFrameAllAtOnce(t *testing.T) {
	wire := sessionOpener(2, []byte("hello"))
	wire = append(wire, subsequentFrame(4, []byte("world"))...)

	r := NewReader(bytes.NewReader(wire))

	f1, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(2), f1.Tag)
	assert.Equal(t, []byte("hello"), f1.Payload)

	f2, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(4), f2.Tag)
	assert.Equal(t, []byte("world"), f2.Payload)
}

// One byte at a time must produce output identical to reading the whole
// stream in one call.
func TestReadFrameOneByteAtATime(t *testing.T) {
	wire := sessionOpener(2, []byte("hello"))
	wire = append(wire, subsequentFrame(4, []byte("a longer payload here"))...)

	r := NewReader(&oneByteReader{buf: append([]byte(nil), wire...)})

	f1, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(2), f1.Tag)
	assert.Equal(t, []byte("hello"), f1.Payload)

	f2, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(4), f2.Tag)
	assert.Equal(t, []byte("a longer payload here"), f2.Payload)
}

// Split mid-varint: a multi-byte size prefix arrives across several short
// reads, none of which align with its boundary.
func TestReadFrameSplitVarintSize(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 200) // size requires 2 varint bytes
	wire := sessionOpener(3, payload)

	pr, pw := io.Pipe()
	go func() {
		for _, b := range wire {
			pw.Write([]byte{b})
		}
		pw.Close()
	}()

	r := NewReader(pr)
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(3), f.Tag)
	assert.Equal(t, payload, f.Payload)
}

func TestReadFrameZeroLengthPayload(t *testing.T) {
	wire := sessionOpener(1, nil)
	wire = append(wire, subsequentFrame(6, nil)...)

	r := NewReader(bytes.NewReader(wire))

	f1, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(1), f1.Tag)
	assert.Equal(t, []byte{}, f1.Payload)

	f2, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, byte(6), f2.Tag)
	assert.Equal(t, []byte{}, f2.Payload)
}

func TestReadFrameVersionMismatch(t *testing.T) {
	for _, bad := range []byte{37, 39, 40, 42} {
		wire := []byte{bad, 2, 0}
		r := NewReader(bytes.NewReader(wire))
		_, err := r.ReadFrame()
		var verr *VersionMismatchError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, bad, verr.Got)
	}
}

func TestReadFrameLegacyVersionAccepted(t *testing.T) {
	wire := sessionOpener(LegacyVersion, []byte("ok"))
	wire[0] = LegacyVersion
	r := NewReader(bytes.NewReader(wire))
	f, err := r.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), f.Payload)
}

func TestReadFrameShortStreamIsUnexpectedEOF(t *testing.T) {
	wire := sessionOpener(2, []byte("hello"))
	r := NewReader(bytes.NewReader(wire[:len(wire)-2]))

	_, err := r.ReadFrame()
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
