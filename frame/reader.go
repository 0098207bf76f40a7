// Package frame implements the MCS four-state incremental frame parser: a
// length-delimited wire format read from a blocking byte stream that must
// survive short reads one byte at a time.
//
//	session opener: <version: u8> <tag: u8> <size: varint32> <payload: bytes[size]>
//	subsequent:                   <tag: u8> <size: varint32> <payload: bytes[size]>
package frame

import (
	"fmt"
	"io"

	"github.com/norrin-labs/fcmpush/varint"
)

// state is the explicit state of the parser.
type state int

const (
	expectVersionTagSize state = iota
	expectTagSize
	expectSize
	expectPayload
)

// CurrentVersion and LegacyVersion are the only MCS version bytes this
// reader accepts. Anything else is a fatal ProtocolVersionMismatch.
const (
	CurrentVersion byte = 41
	LegacyVersion  byte = 38
)

// Frame is one complete (tag, payload) pair read from the stream.
type Frame struct {
	Tag     byte
	Payload []byte
}

// VersionMismatchError is fatal: the session-opener byte was neither
// CurrentVersion nor LegacyVersion.
type VersionMismatchError struct {
	Got, Expected byte
}

func (e *VersionMismatchError) Error() string {
	return fmt.Sprintf("frame: protocol version mismatch: got %d, expected %d", e.Got, e.Expected)
}

// Reader incrementally parses Frames out of an io.Reader, reading no more
// than the current state requires so that recv() calls stay bounded — this
// keeps heartbeat scheduling latency independent of how much data happens
// to be sitting in the kernel socket buffer.
type Reader struct {
	r io.Reader

	state             state
	partialSizeBytes  uint8
	currentTag        byte
	currentPayloadLen uint32
	carry             []byte
}

// NewReader constructs a Reader that expects the session-opener framing
// (version byte) on its first ReadFrame call.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, state: expectVersionTagSize}
}

// ReadFrame blocks until one complete Frame has been parsed, or a fatal
// error occurs. A recv() returning 0 bytes before the current state
// completes is reported as io.ErrUnexpectedEOF.
func (fr *Reader) ReadFrame() (Frame, error) {
	for {
		switch fr.state {
		case expectVersionTagSize:
			if err := fr.readAtLeast(3); err != nil {
				return Frame{}, err
			}
			version := fr.carry[0]
			if version != CurrentVersion && version != LegacyVersion {
				return Frame{}, &VersionMismatchError{Got: version, Expected: CurrentVersion}
			}
			fr.currentTag = fr.carry[1]
			fr.carry = fr.carry[2:]
			fr.partialSizeBytes = 0
			fr.state = expectSize

		case expectTagSize:
			if err := fr.readAtLeast(2); err != nil {
				return Frame{}, err
			}
			fr.currentTag = fr.carry[0]
			fr.carry = fr.carry[1:]
			fr.partialSizeBytes = 0
			fr.state = expectSize

		case expectSize:
			// Each pass requires strictly one more byte than we already
			// hold, since a varint that needed more input last time still
			// needs exactly one additional byte now.
			if err := fr.readAtLeast(int(fr.partialSizeBytes) + 1); err != nil {
				return Frame{}, err
			}
			value, consumed, err := varint.Decode(fr.carry, 0)
			switch err {
			case nil:
				fr.currentPayloadLen = value
				fr.carry = fr.carry[consumed:]
				fr.state = expectPayload
			case varint.ErrNeedMoreInput:
				// Stay in expectSize; the next loop iteration reads one more byte.
				fr.partialSizeBytes++
				continue
			default:
				return Frame{}, fmt.Errorf("frame: %w", err)
			}

		case expectPayload:
			if fr.currentPayloadLen == 0 {
				fr.state = expectTagSize
				tag := fr.currentTag
				fr.currentTag = 0
				fr.currentPayloadLen = 0
				return Frame{Tag: tag, Payload: []byte{}}, nil
			}
			if err := fr.readAtLeast(int(fr.currentPayloadLen)); err != nil {
				return Frame{}, err
			}
			payload := fr.carry[:fr.currentPayloadLen]
			fr.carry = fr.carry[fr.currentPayloadLen:]
			tag := fr.currentTag
			fr.currentTag = 0
			fr.currentPayloadLen = 0
			fr.state = expectTagSize
			return Frame{Tag: tag, Payload: payload}, nil

		default:
			return Frame{}, fmt.Errorf("frame: unreachable state %d", fr.state)
		}
	}
}

// readAtLeast ensures fr.carry holds at least n bytes, issuing recv() calls
// sized to exactly the shortfall. It never reads more than the current
// state needs.
func (fr *Reader) readAtLeast(n int) error {
	for len(fr.carry) < n {
		need := n - len(fr.carry)
		buf := make([]byte, need)
		read, err := fr.r.Read(buf)
		if read > 0 {
			fr.carry = append(fr.carry, buf[:read]...)
		}
		if err != nil {
			if err == io.EOF {
				return io.ErrUnexpectedEOF
			}
			return err
		}
		if read == 0 {
			return io.ErrUnexpectedEOF
		}
	}
	return nil
}
