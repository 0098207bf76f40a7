package fcmpush

import (
	"fmt"

	"github.com/norrin-labs/fcmpush/mcs"
)

// TransportKind identifies which transport operation a TransportError came from.
type TransportKind = mcs.TransportKind

const (
	TransportConnect = mcs.TransportConnect
	TransportSend    = mcs.TransportSend
	TransportRecv    = mcs.TransportRecv
)

// ConfigInvalidError reports credentials that are wrong-length or unparseable.
// It is fatal at startup.
type ConfigInvalidError struct {
	Field  string
	Detail string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("fcmpush: invalid config field %q: %s", e.Field, e.Detail)
}

// The remaining fatal/non-fatal error kinds are raised from within the mcs
// package's session driver, which cannot import this package without a
// cycle (this package wires mcs into the top-level Client). They are
// defined there and re-exported here under their documented names.
type (
	TransportError               = mcs.TransportError
	ProtocolVersionMismatchError = mcs.ProtocolVersionMismatchError
	FrameMalformedError          = mcs.FrameMalformedError
	MessageParseError            = mcs.MessageParseError
	ServerClosedError            = mcs.ServerClosedError
	DecryptError                 = mcs.DecryptError
	HeaderMissingError           = mcs.HeaderMissingError
)
