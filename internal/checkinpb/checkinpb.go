// Package checkinpb hand-encodes the Android checkin protocol-buffer
// messages exchanged with android.clients.google.com/checkin during device
// registration, using google.golang.org/protobuf/encoding/protowire in place
// of generated code.
package checkinpb

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// DeviceType mirrors the wire enum carried by AndroidCheckinProto.type.
type DeviceType int32

const (
	DeviceType_DEVICE_ANDROID_OS     DeviceType = 1
	DeviceType_DEVICE_IOS_OS         DeviceType = 2
	DeviceType_DEVICE_CHROME_BROWSER DeviceType = 3
)

// ChromeBuildProto describes a Chrome-browser client identity, the form the
// registration endpoint expects when Type is DEVICE_CHROME_BROWSER.
type ChromeBuildProto struct {
	Platform      int32
	ChromeVersion string
	Channel       int32
}

func (b *ChromeBuildProto) marshal() []byte {
	var out []byte
	out = appendVarint(out, 1, uint64(uint32(b.Platform)))
	out = appendString(out, 2, b.ChromeVersion)
	out = appendVarint(out, 3, uint64(uint32(b.Channel)))
	return out
}

// AndroidCheckinProto wraps the Chrome build identity plus the device type
// the checkin request reports.
type AndroidCheckinProto struct {
	ChromeBuild *ChromeBuildProto
	Type        DeviceType
}

func (c *AndroidCheckinProto) marshal() []byte {
	var out []byte
	out = appendVarint(out, 2, uint64(c.Type))
	if c.ChromeBuild != nil {
		out = protowire.AppendTag(out, 3, protowire.BytesType)
		out = protowire.AppendBytes(out, c.ChromeBuild.marshal())
	}
	return out
}

// AndroidCheckinRequest is the full checkin request body, including the
// pre-existing android_id/security_token pair on a re-checkin.
type AndroidCheckinRequest struct {
	Id               *int64
	SecurityToken    *uint64
	Checkin          *AndroidCheckinProto
	Version          int32
	Fragment         int32
	Locale           string
	TimeZone         string
	UserSerialNumber int32
}

func (r *AndroidCheckinRequest) Marshal() ([]byte, error) {
	var out []byte
	if r.Id != nil {
		out = appendVarint(out, 1, uint64(*r.Id))
	}
	if r.Checkin != nil {
		out = protowire.AppendTag(out, 2, protowire.BytesType)
		out = protowire.AppendBytes(out, r.Checkin.marshal())
	}
	out = appendString(out, 3, r.Locale)
	if r.SecurityToken != nil {
		out = appendVarint(out, 4, *r.SecurityToken)
	}
	out = appendVarint(out, 5, uint64(uint32(r.Version)))
	out = appendString(out, 6, r.TimeZone)
	out = appendVarint(out, 7, uint64(uint32(r.Fragment)))
	out = appendVarint(out, 8, uint64(uint32(r.UserSerialNumber)))
	return out, nil
}

// Unmarshal decodes a checkin request. Used by tests to inspect what was
// actually sent on the wire.
func (r *AndroidCheckinRequest) Unmarshal(data []byte) error {
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
			id := int64(v)
			r.Id = &id
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			checkin := &AndroidCheckinProto{}
			if err := checkin.unmarshal(v); err != nil {
				return err
			}
			r.Checkin = checkin
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.Locale = v
			data = data[n:]
		case 4:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.SecurityToken = &v
			data = data[n:]
		case 5:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.Version = int32(v)
			data = data[n:]
		case 6:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.TimeZone = v
			data = data[n:]
		case 7:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.Fragment = int32(v)
			data = data[n:]
		case 8:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			r.UserSerialNumber = int32(v)
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

func (c *AndroidCheckinProto) unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 2:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			c.Type = DeviceType(v)
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			chrome := &ChromeBuildProto{}
			if err := chrome.unmarshal(v); err != nil {
				return err
			}
			c.ChromeBuild = chrome
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

func (b *ChromeBuildProto) unmarshal(data []byte) error {
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
			b.Platform = int32(v)
			data = data[n:]
		case 2:
			v, n := protowire.ConsumeString(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b.ChromeVersion = v
			data = data[n:]
		case 3:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b.Channel = int32(v)
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

// AndroidCheckinResponse carries the android_id/security_token pair assigned
// (or reconfirmed) by the server.
type AndroidCheckinResponse struct {
	AndroidId     uint64
	SecurityToken uint64
}

func (resp *AndroidCheckinResponse) GetAndroidId() uint64     { return resp.AndroidId }
func (resp *AndroidCheckinResponse) GetSecurityToken() uint64 { return resp.SecurityToken }

// Marshal encodes a response, mirroring what the checkin server would send.
// Exercised by registration tests that fake the server side.
func (resp *AndroidCheckinResponse) Marshal() ([]byte, error) {
	var out []byte
	out = appendVarint(out, 7, resp.AndroidId)
	out = appendVarint(out, 8, resp.SecurityToken)
	return out, nil
}

func (resp *AndroidCheckinResponse) Unmarshal(data []byte) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]
		switch num {
		case 7:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			resp.AndroidId = v
			data = data[n:]
		case 8:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			resp.SecurityToken = v
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

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}
