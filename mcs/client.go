// Package mcs drives one MCS (Mobile Connection Server) session: login,
// heartbeats, and dispatch of inbound frames to the message, persistent_id
// and connected events. It owns the wire-level framing and protocol
// decisions; the root package wires it to registration and decryption.
package mcs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/norrin-labs/fcmpush/emitter"
	"github.com/norrin-labs/fcmpush/frame"
	"github.com/norrin-labs/fcmpush/internal/mcspb"
	"github.com/norrin-labs/fcmpush/varint"
	"github.com/norrin-labs/fcmpush/webpush"
)

// mcsTag identifies MCS protocol message types. Tag numbering is ordinal in
// the transmitted byte, not the protobuf field number of any message.
type mcsTag uint8

const (
	tagHeartbeatPing     mcsTag = 0
	tagHeartbeatAck      mcsTag = 1
	tagLoginRequest      mcsTag = 2
	tagLoginResponse     mcsTag = 3
	tagClose             mcsTag = 4
	tagIqStanza          mcsTag = 7
	tagDataMessageStanza mcsTag = 8
	tagStreamErrorStanza mcsTag = 10
)

// Event names the session emits. Payloads: connected carries a status
// string, persistent_id carries the ';'-joined current set, message carries
// decrypted plaintext as a string.
const (
	EventConnected    = "connected"
	EventPersistentID = "persistent_id"
	EventMessage      = "message"
)

// DefaultHeartbeatInterval and DefaultRecordSize mirror the root package's
// defaults; mcs keeps its own copies so it never needs to import the root
// package (which imports mcs to build the top-level Client).
const (
	DefaultHeartbeatInterval = 600_000 * time.Millisecond
	DefaultRecordSize        = 4096
)

// Credentials is the subset of a device's registered identity the session
// driver needs: wire identity plus the ECE receiver keys for decrypting
// DataMessageStanza payloads.
type Credentials struct {
	AndroidID     uint64
	SecurityToken uint64
	PrivateKey    []byte // ECE receiver private key, 32 bytes
	AuthSecret    []byte // ECE auth secret, 16 bytes
}

// Options configures a Session. The zero value resolves to the documented
// defaults.
type Options struct {
	HeartbeatInterval time.Duration
	RecordSize        int
	Logger            *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.RecordSize <= 0 {
		o.RecordSize = DefaultRecordSize
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Session is one open MCS connection: login has been submitted, and the
// receive loop has not yet run (or is running). The session exclusively
// owns its transport and persistent-id set; the heartbeat timer only ever
// holds enough to submit a ping, never an owning handle, per the no-cyclic-
// ownership design.
type Session struct {
	transport         Transport
	creds             Credentials
	persistentIDs     *PersistentIDSet
	recordSize        int
	heartbeatInterval time.Duration
	logger            *slog.Logger

	emitter *emitter.Emitter

	writeMu sync.Mutex

	hbMu    sync.Mutex
	hbTimer *time.Timer

	lastStreamIDReceived atomic.Int32
}

// Open dials the transport, submits a LoginRequest, and returns before the
// LoginResponse arrives. persistentIDs may be nil, meaning an empty set.
func Open(ctx context.Context, transport Transport, creds Credentials, persistentIDs *PersistentIDSet, opts Options) (*Session, error) {
	opts = opts.withDefaults()
	if persistentIDs == nil {
		persistentIDs = NewPersistentIDSet(nil)
	}

	if err := transport.Connect(ctx); err != nil {
		return nil, &TransportError{Kind: TransportConnect, Err: err}
	}

	s := &Session{
		transport:         transport,
		creds:             creds,
		persistentIDs:     persistentIDs,
		recordSize:        opts.RecordSize,
		heartbeatInterval: opts.HeartbeatInterval,
		logger:            opts.Logger,
		emitter:           emitter.New(),
	}

	if err := s.sendLogin(); err != nil {
		transport.Close()
		return nil, err
	}
	return s, nil
}

// On registers a persistent handler for event, returning a handle usable
// with Off.
func (s *Session) On(event string, fn func(any)) emitter.Handle { return s.emitter.On(event, fn) }

// Once registers a handler that fires at most once for event.
func (s *Session) Once(event string, fn func(any)) emitter.Handle { return s.emitter.Once(event, fn) }

// Off removes a previously registered handler. A stale or unknown handle is
// a no-op.
func (s *Session) Off(event string, h emitter.Handle) { s.emitter.Off(event, h) }

// PersistentIDs returns the session's live persistent-id set. The receive
// loop is the only mutator; callers should treat it as read-only.
func (s *Session) PersistentIDs() *PersistentIDSet { return s.persistentIDs }

// Close cancels any pending heartbeat and releases the transport.
func (s *Session) Close() error {
	s.hbMu.Lock()
	if s.hbTimer != nil {
		s.hbTimer.Stop()
	}
	s.hbMu.Unlock()
	return s.transport.Close()
}

// ReceiveForever runs the frame reader loop until a fatal error, an orderly
// peer close, or ctx cancellation. Every complete frame is decoded and
// dispatched per the message codec's tag table.
func (s *Session) ReceiveForever(ctx context.Context) error {
	connClosed := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.transport.Close()
		case <-connClosed:
		}
	}()
	defer close(connClosed)

	fr := frame.NewReader(transportReader{s.transport})

	for {
		f, err := fr.ReadFrame()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var vme *frame.VersionMismatchError
			if errors.As(err, &vme) {
				return &ProtocolVersionMismatchError{Got: vme.Got, Expected: vme.Expected}
			}
			if errors.Is(err, varint.ErrMalformed) {
				return &FrameMalformedError{Detail: err.Error()}
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return &ServerClosedError{Reason: err.Error()}
			}
			return &TransportError{Kind: TransportRecv, Err: err}
		}

		if err := s.handleFrame(f); err != nil {
			return err
		}
	}
}

func (s *Session) handleFrame(f frame.Frame) error {
	switch mcsTag(f.Tag) {
	case tagLoginResponse:
		var resp mcspb.LoginResponse
		if err := resp.Unmarshal(f.Payload); err != nil {
			return &MessageParseError{Tag: int(f.Tag), Err: err}
		}
		s.lastStreamIDReceived.Store(resp.GetLastStreamIdReceived())
		s.persistentIDs.Clear()
		s.emitter.Emit(EventConnected, "connected")

		ping := &mcspb.HeartbeatPing{LastStreamIdReceived: resp.GetLastStreamIdReceived()}
		if err := s.sendPacket(tagHeartbeatPing, ping, false); err != nil {
			s.logger.Warn("mcs: failed to send initial heartbeat ping", "error", err)
		}

	case tagHeartbeatAck:
		var ack mcspb.HeartbeatAck
		if err := ack.Unmarshal(f.Payload); err != nil {
			return &MessageParseError{Tag: int(f.Tag), Err: err}
		}
		s.lastStreamIDReceived.Store(ack.GetLastStreamIdReceived())
		s.scheduleHeartbeat()

	case tagHeartbeatPing:
		s.logger.Debug("mcs: heartbeat ping received from server")
		ack := &mcspb.HeartbeatAck{}
		if err := s.sendPacket(tagHeartbeatAck, ack, false); err != nil {
			s.logger.Warn("mcs: failed to send heartbeat ack", "error", err)
		}

	case tagDataMessageStanza:
		s.handleDataMessage(f.Payload)

	case tagIqStanza:
		var iq mcspb.IqStanza
		if err := iq.Unmarshal(f.Payload); err != nil {
			s.logger.Warn("mcs: failed to unmarshal IqStanza", "error", err)
			return nil
		}
		s.logger.Debug("mcs: iq stanza received", "type", iq.GetType(), "id", iq.GetId(), "from", iq.GetFrom(), "to", iq.GetTo())

	case tagClose:
		return &ServerClosedError{Reason: "server sent close"}

	case tagStreamErrorStanza:
		var se mcspb.StreamErrorStanza
		if err := se.Unmarshal(f.Payload); err != nil {
			return &MessageParseError{Tag: int(f.Tag), Err: err}
		}
		return &ServerClosedError{Reason: fmt.Sprintf("stream error: type=%s text=%s", se.GetType(), se.GetText())}

	default:
		s.logger.Debug("mcs: unrecognized tag", "tag", f.Tag)
	}
	return nil
}

// handleDataMessage decrypts and dispatches a DataMessageStanza. Every
// failure class here is non-fatal: the message is dropped and logged, and
// the receive loop continues.
func (s *Session) handleDataMessage(payload []byte) {
	var msg mcspb.DataMessageStanza
	if err := msg.Unmarshal(payload); err != nil {
		s.logger.Warn("mcs: failed to unmarshal DataMessageStanza", "error", err)
		return
	}
	s.logger.Debug("mcs: data message", "from", msg.GetFrom(), "category", msg.GetCategory(), "persistentId", msg.GetPersistentId())

	if msg.GetPersistentId() != "" {
		s.persistentIDs.Append(msg.GetPersistentId())
		s.emitter.Emit(EventPersistentID, s.persistentIDs.Join())
	}

	raw := msg.GetRawData()
	if len(raw) == 0 {
		return
	}

	salt, senderKey, err := dataMessageHeaders(msg.GetAppData())
	if err != nil {
		s.logger.Warn("mcs: data message missing encryption headers", "error", err)
		return
	}

	plaintext, err := webpush.Decrypt(s.creds.PrivateKey, s.creds.AuthSecret, salt, senderKey, s.recordSize, raw)
	if err != nil {
		s.logger.Warn("mcs: decrypt failed", "error", &DecryptError{Code: err.Error()})
		return
	}

	s.emitter.Emit(EventMessage, string(plaintext))
}

// dataMessageHeaders extracts the ECE salt and sender public key from a
// DataMessageStanza's AppData pairs: "encryption" carries "salt=<b64url>"
// and "crypto-key" carries "dh=<b64url>".
func dataMessageHeaders(appData []*mcspb.AppData) (salt, senderKey []byte, err error) {
	for _, kv := range appData {
		switch kv.GetKey() {
		case "encryption":
			v, ok := strings.CutPrefix(kv.GetValue(), "salt=")
			if !ok {
				return nil, nil, &HeaderMissingError{Field: "encryption"}
			}
			salt, err = base64.RawURLEncoding.DecodeString(v)
			if err != nil {
				return nil, nil, fmt.Errorf("decode salt: %w", err)
			}
		case "crypto-key":
			v, ok := strings.CutPrefix(kv.GetValue(), "dh=")
			if !ok {
				return nil, nil, &HeaderMissingError{Field: "crypto-key"}
			}
			senderKey, err = base64.RawURLEncoding.DecodeString(v)
			if err != nil {
				return nil, nil, fmt.Errorf("decode sender key: %w", err)
			}
		}
	}
	if len(salt) != 16 {
		return nil, nil, &HeaderMissingError{Field: "encryption"}
	}
	if len(senderKey) != 65 {
		return nil, nil, &HeaderMissingError{Field: "crypto-key"}
	}
	return salt, senderKey, nil
}

func (s *Session) sendLogin() error {
	decID := strconv.FormatUint(s.creds.AndroidID, 10)
	authToken := strconv.FormatUint(s.creds.SecurityToken, 10)
	deviceID := fmt.Sprintf("android-%X", s.creds.AndroidID)

	req := &mcspb.LoginRequest{
		Id:                   "chrome-87.0.4280.66",
		Domain:               "mcs.android.com",
		User:                 decID,
		Resource:             decID,
		AuthToken:            authToken,
		DeviceId:             deviceID,
		ReceivedPersistentId: s.persistentIDs.Slice(),
		AdaptiveHeartbeat:    false,
		UseRmq2:              true,
		AuthService:          mcspb.LoginRequest_ANDROID_ID,
		NetworkType:          1,
		Setting:              []*mcspb.Setting{{Name: "new_vc", Value: "1"}},
	}
	return s.sendPacket(tagLoginRequest, req, true)
}

// scheduleHeartbeat replaces any pending heartbeat timer with one that
// fires once after heartbeatInterval and submits a single HeartbeatPing.
func (s *Session) scheduleHeartbeat() {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()
	if s.hbTimer != nil {
		s.hbTimer.Stop()
	}
	s.hbTimer = time.AfterFunc(s.heartbeatInterval, func() {
		ping := &mcspb.HeartbeatPing{LastStreamIdReceived: s.lastStreamIDReceived.Load()}
		if err := s.sendPacket(tagHeartbeatPing, ping, false); err != nil {
			s.logger.Warn("mcs: failed to send heartbeat ping", "error", err)
		}
	})
}

type marshaler interface {
	Marshal() ([]byte, error)
}

func (s *Session) sendPacket(tag mcsTag, msg marshaler, includeVersion bool) error {
	data, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("mcs: marshal tag %d: %w", tag, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var out []byte
	if includeVersion {
		out = append(out, frame.CurrentVersion)
	}
	out = append(out, byte(tag))
	out = varint.Encode(uint32(len(data)), out)
	out = append(out, data...)

	if err := s.transport.Send(out); err != nil {
		return &TransportError{Kind: TransportSend, Err: err}
	}
	return nil
}
