// Package mcspb hand-encodes the small set of MCS (Mobile Connection Server)
// protocol-buffer messages this client exchanges with the push server. There
// is no .proto source to generate from, so each message implements its own
// Marshal/Unmarshal directly against google.golang.org/protobuf/encoding/protowire,
// the same low-level wire primitives the generated code would use underneath.
package mcspb

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// LoginRequest_AuthService mirrors the wire enum carried by auth_service.
type LoginRequest_AuthService int32

const (
	LoginRequest_GOOGLE_LOGIN LoginRequest_AuthService = 0
	LoginRequest_ANDROID_ID   LoginRequest_AuthService = 2
)

// Setting is a single named client setting, e.g. {name:"new_vc", value:"1"}.
type Setting struct {
	Name  string
	Value string
}

func (s *Setting) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, s.Name)
	b = protowire.AppendTag(b, 2, protowire.BytesType)
	b = protowire.AppendString(b, s.Value)
	return b
}

func unmarshalSetting(data []byte) (*Setting, error) {
	s := &Setting{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			s.Name = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			s.Value = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return s, nil
}

// LoginRequest is the tag-2 outbound login handshake message.
type LoginRequest struct {
	Id                   string
	Domain               string
	User                 string
	Resource             string
	AuthToken            string
	DeviceId             string
	LastRmqId            int64
	ReceivedPersistentId []string
	AdaptiveHeartbeat    bool
	UseRmq2              bool
	AccountId            int64
	AuthService          LoginRequest_AuthService
	NetworkType          int32
	Setting              []*Setting
}

func (m *LoginRequest) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Id)
	b = appendString(b, 2, m.Domain)
	b = appendString(b, 3, m.User)
	b = appendString(b, 4, m.Resource)
	b = appendString(b, 5, m.AuthToken)
	b = appendString(b, 6, m.DeviceId)
	b = protowire.AppendTag(b, 7, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.LastRmqId))
	for _, id := range m.ReceivedPersistentId {
		b = appendString(b, 8, id)
	}
	b = protowire.AppendTag(b, 9, protowire.VarintType)
	b = protowire.AppendVarint(b, boolVarint(m.AdaptiveHeartbeat))
	b = protowire.AppendTag(b, 10, protowire.VarintType)
	b = protowire.AppendVarint(b, boolVarint(m.UseRmq2))
	b = protowire.AppendTag(b, 11, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.AccountId))
	b = protowire.AppendTag(b, 12, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.AuthService))
	b = protowire.AppendTag(b, 13, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.NetworkType)))
	for _, s := range m.Setting {
		b = protowire.AppendTag(b, 14, protowire.BytesType)
		b = protowire.AppendBytes(b, s.marshal())
	}
	return b, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

// Unmarshal decodes a LoginRequest payload. Used by tests to inspect what
// was actually sent on the wire.
func (m *LoginRequest) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Id = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Domain = v
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.User = v
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Resource = v
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.AuthToken = v
			data = data[n:]
		case 6:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.DeviceId = v
			data = data[n:]
		case 7:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.LastRmqId = int64(v)
			data = data[n:]
		case 8:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.ReceivedPersistentId = append(m.ReceivedPersistentId, v)
			data = data[n:]
		case 9:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.AdaptiveHeartbeat = v != 0
			data = data[n:]
		case 10:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.UseRmq2 = v != 0
			data = data[n:]
		case 11:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.AccountId = int64(v)
			data = data[n:]
		case 12:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.AuthService = LoginRequest_AuthService(v)
			data = data[n:]
		case 13:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.NetworkType = int32(v)
			data = data[n:]
		case 14:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			s, err := unmarshalSetting(v)
			if err != nil {
				return fmt.Errorf("setting: %w", err)
			}
			m.Setting = append(m.Setting, s)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

func boolVarint(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

// LoginResponse is the tag-3 inbound login acknowledgement.
type LoginResponse struct {
	Id                   string
	LastStreamIdReceived int32
}

func (m *LoginResponse) GetId() string                   { return m.Id }
func (m *LoginResponse) GetLastStreamIdReceived() int32   { return m.LastStreamIdReceived }

// Marshal encodes a response, mirroring what the server would send.
// Exercised by session tests that fake the server side.
func (m *LoginResponse) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.Id)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.LastStreamIdReceived)))
	return b, nil
}

func (m *LoginResponse) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Id = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.LastStreamIdReceived = int32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// HeartbeatPing is the tag-0 outbound keepalive.
type HeartbeatPing struct {
	Status               int64
	StreamId             int32
	LastStreamIdReceived int32
}

func (m *HeartbeatPing) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Status))
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.StreamId)))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.LastStreamIdReceived)))
	return b, nil
}

// HeartbeatAck is the tag-1 inbound keepalive acknowledgement.
type HeartbeatAck struct {
	Status               int64
	StreamId             int32
	LastStreamIdReceived int32
}

func (m *HeartbeatAck) GetStatus() int64               { return m.Status }
func (m *HeartbeatAck) GetStreamId() int32              { return m.StreamId }
func (m *HeartbeatAck) GetLastStreamIdReceived() int32  { return m.LastStreamIdReceived }

// Marshal encodes an ack, mirroring what the server would send. Exercised
// by session tests that fake the server side.
func (m *HeartbeatAck) Marshal() ([]byte, error) {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.StreamId)))
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Status))
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(uint32(m.LastStreamIdReceived)))
	return b, nil
}

func (m *HeartbeatAck) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.StreamId = int32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Status = int64(v)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.LastStreamIdReceived = int32(v)
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// AppData is a single key/value header carried inside a DataMessageStanza.
type AppData struct {
	Key   string
	Value string
}

func (a *AppData) GetKey() string   { return a.Key }
func (a *AppData) GetValue() string { return a.Value }

func (a *AppData) marshal() []byte {
	var b []byte
	b = appendString(b, 1, a.Key)
	b = appendString(b, 2, a.Value)
	return b
}

func unmarshalAppData(data []byte) (*AppData, error) {
	a := &AppData{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			a.Key = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			a.Value = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return a, nil
}

// DataMessageStanza is the tag-8 inbound push payload envelope.
type DataMessageStanza struct {
	From         string
	Category     string
	PersistentId string
	RawData      []byte
	AppData      []*AppData
}

func (m *DataMessageStanza) GetFrom() string           { return m.From }
func (m *DataMessageStanza) GetCategory() string        { return m.Category }
func (m *DataMessageStanza) GetPersistentId() string    { return m.PersistentId }
func (m *DataMessageStanza) GetRawData() []byte         { return m.RawData }
func (m *DataMessageStanza) GetAppData() []*AppData     { return m.AppData }

// Marshal encodes a stanza, mirroring what the server would send. Exercised
// by session tests that fake the server side.
func (m *DataMessageStanza) Marshal() ([]byte, error) {
	var b []byte
	b = appendString(b, 1, m.From)
	b = appendString(b, 2, m.Category)
	if len(m.RawData) > 0 {
		b = protowire.AppendTag(b, 4, protowire.BytesType)
		b = protowire.AppendBytes(b, m.RawData)
	}
	for _, ad := range m.AppData {
		b = protowire.AppendTag(b, 5, protowire.BytesType)
		b = protowire.AppendBytes(b, ad.marshal())
	}
	b = appendString(b, 6, m.PersistentId)
	return b, nil
}

func (m *DataMessageStanza) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.From = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Category = v
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.RawData = append([]byte(nil), v...)
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			ad, err := unmarshalAppData(v)
			if err != nil {
				return fmt.Errorf("app_data: %w", err)
			}
			m.AppData = append(m.AppData, ad)
			data = data[n:]
		case 6:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.PersistentId = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// IqStanza is the tag-7 inbound housekeeping stanza. The client only logs
// its header fields; the extension payload is not interpreted.
type IqStanza struct {
	Type int32
	Id   string
	From string
	To   string
}

func (m *IqStanza) GetType() int32 { return m.Type }
func (m *IqStanza) GetId() string  { return m.Id }
func (m *IqStanza) GetFrom() string { return m.From }
func (m *IqStanza) GetTo() string   { return m.To }

func (m *IqStanza) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Type = int32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Id = v
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.From = v
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.To = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}

// Close is the tag-4 empty server-initiated disconnect notice.
type Close struct{}

func (m *Close) Unmarshal(data []byte) error {
	return nil
}

// StreamErrorStanza is the tag-10 fatal stream-level error notice.
type StreamErrorStanza struct {
	Type string
	Text string
}

func (m *StreamErrorStanza) GetType() string { return m.Type }
func (m *StreamErrorStanza) GetText() string { return m.Text }

func (m *StreamErrorStanza) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 1:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Type = v
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			m.Text = v
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
		}
	}
	return nil
}
