// Package fcmpush is a long-lived client for a push-notification delivery
// service modeled on Google's Mobile Connection Server (MCS) and Firebase
// Cloud Messaging Web Push. It performs one-time device registration, opens
// a persistent authenticated TLS stream to the message server, decrypts Web
// Push payloads addressed to the registered device, and reports them to the
// host application via the events in the emitter subpackage.
//
// Usage:
//
//	client := fcmpush.NewClient(fcmpush.Config{})
//	client.OnMessage(func(msg []byte) { ... })
//	creds, err := client.Register(ctx, params)
//	err = client.Listen(ctx, creds, nil)
package fcmpush

import "github.com/norrin-labs/fcmpush/mcs"

const (
	// ECEWebPushPrivateKeyLength is the length in bytes of the device's
	// P-256 receiver private key.
	ECEWebPushPrivateKeyLength = 32

	// ECEWebPushPublicKeyLength is the length in bytes of the device's
	// uncompressed P-256 receiver public key.
	ECEWebPushPublicKeyLength = 65

	// ECEWebPushAuthSecretLength is the length in bytes of the per-subscriber
	// symmetric auth secret.
	ECEWebPushAuthSecretLength = 16
)

// DeviceCredentials is produced once by registration and required to open
// every MCS session. It is consumed by value; the core never mutates it.
type DeviceCredentials struct {
	AndroidID     uint64 `json:"android_id"`
	SecurityToken uint64 `json:"security_token"`
	ECEPrivateKey []byte `json:"ece_private_key"`
	ECEPublicKey  []byte `json:"ece_public_key"`
	AuthSecret    []byte `json:"auth_secret"`
	FCMToken      string `json:"fcm_token"`
}

// Validate checks the byte lengths the wire protocol and the ECE decryptor
// require. It returns a *ConfigInvalidError describing the first problem
// found, or nil.
func (c DeviceCredentials) Validate() error {
	if len(c.ECEPrivateKey) != ECEWebPushPrivateKeyLength {
		return &ConfigInvalidError{Field: "ece_private_key", Detail: "must be 32 bytes"}
	}
	if len(c.ECEPublicKey) != ECEWebPushPublicKeyLength {
		return &ConfigInvalidError{Field: "ece_public_key", Detail: "must be 65 bytes"}
	}
	if len(c.AuthSecret) != ECEWebPushAuthSecretLength {
		return &ConfigInvalidError{Field: "auth_secret", Detail: "must be 16 bytes"}
	}
	if c.AndroidID == 0 {
		return &ConfigInvalidError{Field: "android_id", Detail: "must be non-zero"}
	}
	return nil
}

// PersistentIDSet is the ordered sequence of persistent ids the device has
// acknowledged. It is defined in the mcs package, which is the only thing
// that mutates it (the receive loop); this is a re-export for callers that
// only import the root package to build one.
type PersistentIDSet = mcs.PersistentIDSet

// NewPersistentIDSet constructs a set pre-populated from a persisted list,
// e.g. loaded from persistent_id.txt.
func NewPersistentIDSet(ids []string) *PersistentIDSet {
	return mcs.NewPersistentIDSet(ids)
}

// ParseJoinedPersistentIDs splits persistent_id.txt's ';'-separated contents
// back into a slice suitable for NewPersistentIDSet.
func ParseJoinedPersistentIDs(joined string) []string {
	return mcs.ParseJoinedPersistentIDs(joined)
}
