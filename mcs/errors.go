package mcs

import "fmt"

// TransportKind identifies which transport operation a TransportError came from.
type TransportKind int

const (
	TransportConnect TransportKind = iota
	TransportSend
	TransportRecv
)

func (k TransportKind) String() string {
	switch k {
	case TransportConnect:
		return "connect"
	case TransportSend:
		return "send"
	case TransportRecv:
		return "recv"
	default:
		return "unknown"
	}
}

// TransportError wraps a fatal failure from the transport.
type TransportError struct {
	Kind TransportKind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mcs: transport %s: %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolVersionMismatchError is fatal: the server opened the session with
// an MCS version byte this client does not understand. It is the session's
// translation of the frame package's VersionMismatchError — the frame
// reader stays free of any session-level error vocabulary.
type ProtocolVersionMismatchError struct {
	Got, Expected byte
}

func (e *ProtocolVersionMismatchError) Error() string {
	return fmt.Sprintf("mcs: protocol version mismatch: got %d, expected %d", e.Got, e.Expected)
}

// FrameMalformedError is fatal: a frame's size varint ran to 5 bytes without
// a terminator. Payload sizes are not bounded, so no size value on its own
// produces this error.
type FrameMalformedError struct {
	Detail string
}

func (e *FrameMalformedError) Error() string {
	return fmt.Sprintf("mcs: malformed frame: %s", e.Detail)
}

// MessageParseError is fatal: the protobuf payload for a known tag failed to
// decode, indicating the stream is desynchronized.
type MessageParseError struct {
	Tag int
	Err error
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("mcs: failed to parse message for tag %d: %v", e.Tag, e.Err)
}

func (e *MessageParseError) Unwrap() error { return e.Err }

// ServerClosedError is fatal-but-clean: the server sent a Close frame, a
// StreamErrorStanza, or closed the connection in an orderly fashion.
type ServerClosedError struct {
	Reason string
}

func (e *ServerClosedError) Error() string {
	if e.Reason == "" {
		return "mcs: server closed the connection"
	}
	return fmt.Sprintf("mcs: server closed the connection: %s", e.Reason)
}

// DecryptError is non-fatal: the message is dropped and logged, the session
// continues.
type DecryptError struct {
	Code string
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("mcs: decrypt failed: %s", e.Code)
}

// HeaderMissingError is non-fatal: a required AppData header (encryption or
// crypto-key) was missing or the wrong length.
type HeaderMissingError struct {
	Field string
}

func (e *HeaderMissingError) Error() string {
	return fmt.Sprintf("mcs: missing or malformed header %q", e.Field)
}
