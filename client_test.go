package fcmpush

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/norrin-labs/fcmpush/internal/mcspb"
	"github.com/norrin-labs/fcmpush/mcs"
	"github.com/norrin-labs/fcmpush/varint"
	"github.com/norrin-labs/fcmpush/webpush"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/hkdf"
)

func TestRegisterDataRoundTrip(t *testing.T) {
	keys, err := webpush.GenerateKeyPair()
	require.NoError(t, err)

	creds := DeviceCredentials{
		AndroidID:     123456789,
		SecurityToken: 987654321,
		ECEPrivateKey: keys.PrivateKey,
		ECEPublicKey:  keys.PublicKey,
		AuthSecret:    keys.AuthSecret,
		FCMToken:      "fcm-token",
	}

	data, err := json.Marshal(creds.ToRegisterData())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"acg"`)
	assert.Contains(t, string(data), `"ece"`)
	assert.Contains(t, string(data), `"Token"`)

	var decoded RegisterData
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := FromRegisterData(decoded)
	require.NoError(t, err)
	assert.Equal(t, creds.AndroidID, restored.AndroidID)
	assert.Equal(t, creds.SecurityToken, restored.SecurityToken)
	assert.Equal(t, creds.AuthSecret, restored.AuthSecret)
	assert.Equal(t, creds.ECEPrivateKey, restored.ECEPrivateKey)
	assert.Equal(t, creds.ECEPublicKey, restored.ECEPublicKey)
	assert.Equal(t, creds.FCMToken, restored.FCMToken)
}

func TestFromRegisterDataRejectsBadFields(t *testing.T) {
	var d RegisterData
	d.ACG.ID = "not-a-number"
	d.ACG.SecurityToken = "1"

	_, err := FromRegisterData(d)
	var cie *ConfigInvalidError
	require.ErrorAs(t, err, &cie)
	assert.Equal(t, "acg.ID", cie.Field)
}

func TestParseJoinedPersistentIDsRoundTrip(t *testing.T) {
	set := NewPersistentIDSet([]string{"a", "b", "c"})
	joined := set.Join()
	assert.Equal(t, []string{"a", "b", "c"}, ParseJoinedPersistentIDs(joined))
	assert.Nil(t, ParseJoinedPersistentIDs(""))
}

func TestInitFCMDataToFirebaseParams(t *testing.T) {
	d := InitFCMData{AppID: "app", ProjectID: "proj", APIKey: "key", VAPIDKey: "vapid"}
	fb := d.ToFirebaseParams()
	assert.Equal(t, "app", fb.AppID)
	assert.Equal(t, "proj", fb.ProjectID)
	assert.Equal(t, "key", fb.APIKey)
	assert.Equal(t, "vapid", fb.VAPIDKey)
}

func TestListenRejectsInvalidCredentialsWithoutDialing(t *testing.T) {
	orig := newMCSTransport
	dialed := false
	newMCSTransport = func(host string, port int) mcs.Transport {
		dialed = true
		return nil
	}
	defer func() { newMCSTransport = orig }()

	client := NewClient(Config{})
	err := client.Listen(context.Background(), DeviceCredentials{}, nil)
	var cie *ConfigInvalidError
	require.ErrorAs(t, err, &cie)
	assert.False(t, dialed)
}

// pipeTransport adapts a net.Conn to mcs.Transport so Listen can be driven
// over an in-memory connection during tests.
type pipeTransport struct {
	conn net.Conn
}

func (p *pipeTransport) Connect(ctx context.Context) error { return nil }
func (p *pipeTransport) Send(data []byte) error            { _, err := p.conn.Write(data); return err }
func (p *pipeTransport) Recv(buf []byte) (int, error)      { return p.conn.Read(buf) }
func (p *pipeTransport) IsConnected() bool                 { return true }
func (p *pipeTransport) Close() error                      { return p.conn.Close() }

func TestListenDispatchesConnectedAndMessage(t *testing.T) {
	keys, err := webpush.GenerateKeyPair()
	require.NoError(t, err)

	clientConn, serverConn := net.Pipe()
	defer serverConn.Close()

	orig := newMCSTransport
	newMCSTransport = func(host string, port int) mcs.Transport { return &pipeTransport{conn: clientConn} }
	defer func() { newMCSTransport = orig }()

	client := NewClient(Config{HeartbeatInterval: time.Hour})
	var connected bool
	var message []byte
	var persistentID string
	client.OnConnected(func() { connected = true })
	client.OnMessage(func(p []byte) { message = p })
	client.OnPersistentID(func(p string) { persistentID = p })

	creds := DeviceCredentials{
		AndroidID: 1, SecurityToken: 2,
		ECEPrivateKey: keys.PrivateKey, ECEPublicKey: keys.PublicKey, AuthSecret: keys.AuthSecret,
		FCMToken: "tok",
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- client.Listen(ctx, creds, nil) }()

	drainFrame(t, serverConn, true) // the client's LoginRequest

	writeFrame(serverConn, true, 3, mustMarshalFrame(t, &mcspb.LoginResponse{LastStreamIdReceived: 0}))
	drainFrame(t, serverConn, false) // the immediate heartbeat ping

	ciphertext, salt, senderPub := sealAESGCM(t, keys, []byte("hi"))
	stanza := &mcspb.DataMessageStanza{
		PersistentId: "p1",
		RawData:      ciphertext,
		AppData: []*mcspb.AppData{
			{Key: "encryption", Value: "salt=" + base64.RawURLEncoding.EncodeToString(salt)},
			{Key: "crypto-key", Value: "dh=" + base64.RawURLEncoding.EncodeToString(senderPub)},
		},
	}
	writeFrame(serverConn, false, 8, mustMarshalFrame(t, stanza))

	assert.Eventually(t, func() bool { return connected && message != nil && persistentID != "" }, time.Second, time.Millisecond)
	assert.Equal(t, "hi", string(message))
	assert.Equal(t, "p1", persistentID)

	cancel()
	<-errCh
}

func mustMarshalFrame(t *testing.T, m interface{ Marshal() ([]byte, error) }) []byte {
	t.Helper()
	data, err := m.Marshal()
	require.NoError(t, err)
	return data
}

func writeFrame(conn net.Conn, versioned bool, tag byte, payload []byte) {
	var out []byte
	if versioned {
		out = append(out, 41)
	}
	out = append(out, tag)
	out = varint.Encode(uint32(len(payload)), out)
	out = append(out, payload...)
	conn.Write(out)
}

func drainFrame(t *testing.T, conn net.Conn, versioned bool) []byte {
	t.Helper()
	headerLen := 1
	if versioned {
		headerLen = 2
	}
	header := make([]byte, headerLen)
	_, err := io.ReadFull(conn, header)
	require.NoError(t, err)

	var sizeBuf []byte
	for {
		b := make([]byte, 1)
		_, err := io.ReadFull(conn, b)
		require.NoError(t, err)
		sizeBuf = append(sizeBuf, b[0])
		size, _, err := varint.Decode(sizeBuf, 0)
		if err == nil {
			payload := make([]byte, size)
			if size > 0 {
				_, err := io.ReadFull(conn, payload)
				require.NoError(t, err)
			}
			return payload
		}
	}
}

// sealAESGCM is the sender side of the legacy aesgcm encoding, built
// directly against standard-library/hkdf primitives so fixtures can be
// generated without capturing real wire data.
func sealAESGCM(t *testing.T, recv *webpush.KeyPair, plaintext []byte) (ciphertext, salt, senderPub []byte) {
	t.Helper()
	curve := ecdh.P256()

	senderPriv, err := curve.GenerateKey(rand.Reader)
	require.NoError(t, err)
	senderPub = senderPriv.PublicKey().Bytes()

	recvPub, err := curve.NewPublicKey(recv.PublicKey)
	require.NoError(t, err)
	shared, err := senderPriv.ECDH(recvPub)
	require.NoError(t, err)

	authInfo := []byte("Content-Encoding: auth\x00")
	ikmPRK := hkdf.Extract(sha256.New, shared, recv.AuthSecret)
	ikm := make([]byte, sha256.Size)
	_, err = io.ReadFull(hkdf.Expand(sha256.New, ikmPRK, authInfo), ikm)
	require.NoError(t, err)

	salt = make([]byte, 16)
	_, err = rand.Read(salt)
	require.NoError(t, err)

	var ctx []byte
	ctx = append(ctx, "P-256\x00"...)
	ctx = binary.BigEndian.AppendUint16(ctx, uint16(len(recv.PublicKey)))
	ctx = append(ctx, recv.PublicKey...)
	ctx = binary.BigEndian.AppendUint16(ctx, uint16(len(senderPub)))
	ctx = append(ctx, senderPub...)

	cekInfo := append(append([]byte(nil), "Content-Encoding: aesgcm\x00"...), ctx...)
	nonceInfo := append(append([]byte(nil), "Content-Encoding: nonce\x00"...), ctx...)

	prk := hkdf.Extract(sha256.New, ikm, salt)
	cek := make([]byte, 16)
	_, err = io.ReadFull(hkdf.Expand(sha256.New, prk, cekInfo), cek)
	require.NoError(t, err)
	nonce := make([]byte, 12)
	_, err = io.ReadFull(hkdf.Expand(sha256.New, prk, nonceInfo), nonce)
	require.NoError(t, err)

	padded := append([]byte{0, 0}, plaintext...)

	block, err := aes.NewCipher(cek)
	require.NoError(t, err)
	gcm, err := cipher.NewGCM(block)
	require.NoError(t, err)

	ciphertext = gcm.Seal(nil, nonce, padded, nil)
	return ciphertext, salt, senderPub
}
