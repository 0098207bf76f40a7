// Package webpush implements the receive side of the legacy "aesgcm" Web
// Push content encoding (draft-ietf-webpush-encryption, pre-RFC 8188): two
// HKDF-SHA256 stages combining an ECDH shared secret with a per-subscription
// auth secret and a per-message salt, then AES-128-GCM over a single record
// with a 2-byte big-endian pad-length prefix.
//
// This is the receiver's mirror of the aes128gcm sender flow: same P-256
// ECDH and AES-GCM primitives, different context construction and framing.
package webpush

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/hkdf"
)

const (
	saltLength      = 16
	publicKeyLength = 65
	authSecretLength = 16
	privateKeyLength = 32

	// padLength is the size of the pad-length prefix each aesgcm record
	// carries ahead of its payload.
	padLength = 2
)

var (
	authInfo  = []byte("Content-Encoding: auth\x00")
	cekLabel  = []byte("Content-Encoding: aesgcm\x00")
	nonceLabel = []byte("Content-Encoding: nonce\x00")
)

// KeyPair is a receiver's ECDH keypair plus its auth secret, as produced by
// GenerateKeyPair and persisted as part of DeviceCredentials.
type KeyPair struct {
	PrivateKey []byte // 32 bytes
	PublicKey  []byte // 65 bytes, uncompressed point
	AuthSecret []byte // 16 bytes
}

// GenerateKeyPair creates a fresh P-256 receiver keypair and a random auth
// secret, implementing the generate_keys provider contract.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("webpush: generate key: %w", err)
	}
	authSecret := make([]byte, authSecretLength)
	if _, err := rand.Read(authSecret); err != nil {
		return nil, fmt.Errorf("webpush: generate auth secret: %w", err)
	}
	return &KeyPair{
		PrivateKey: priv.Bytes(),
		PublicKey:  priv.PublicKey().Bytes(),
		AuthSecret: authSecret,
	}, nil
}

// PublicKeyFromPrivate derives the uncompressed P-256 public key for a
// receiver private key. It lets a caller reconstruct a full KeyPair from
// persisted state that only stores the private key and auth secret (the
// fcm_register_data.json shape).
func PublicKeyFromPrivate(privateKey []byte) ([]byte, error) {
	priv, err := ecdh.P256().NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("webpush: invalid private key: %w", err)
	}
	return priv.PublicKey().Bytes(), nil
}

// Decrypt reverses the legacy aesgcm content encoding. recordSize bounds how
// large a single record may be (rs=4096 is the provider default); the core
// only ever needs to decrypt one record since the payloads this client
// receives never exceed that size.
func Decrypt(privateKey, authSecret, salt, senderPublicKey []byte, recordSize int, ciphertext []byte) ([]byte, error) {
	if len(privateKey) != privateKeyLength {
		return nil, fmt.Errorf("webpush: private key must be %d bytes, got %d", privateKeyLength, len(privateKey))
	}
	if len(authSecret) != authSecretLength {
		return nil, fmt.Errorf("webpush: auth secret must be %d bytes, got %d", authSecretLength, len(authSecret))
	}
	if len(salt) != saltLength {
		return nil, fmt.Errorf("webpush: salt must be %d bytes, got %d", saltLength, len(salt))
	}
	if len(senderPublicKey) != publicKeyLength {
		return nil, fmt.Errorf("webpush: sender public key must be %d bytes, got %d", publicKeyLength, len(senderPublicKey))
	}
	if len(ciphertext) == 0 {
		return nil, fmt.Errorf("webpush: empty ciphertext")
	}

	curve := ecdh.P256()
	recvPriv, err := curve.NewPrivateKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("webpush: invalid private key: %w", err)
	}
	senderPub, err := curve.NewPublicKey(senderPublicKey)
	if err != nil {
		return nil, fmt.Errorf("webpush: invalid sender public key: %w", err)
	}
	sharedSecret, err := recvPriv.ECDH(senderPub)
	if err != nil {
		return nil, fmt.Errorf("webpush: ecdh: %w", err)
	}
	receiverPublicKey := recvPriv.PublicKey().Bytes()

	// Stage 1: combine the ECDH shared secret with the subscription's auth
	// secret into an intermediate key material (IKM).
	ikm, err := expandOnce(extract(authSecret, sharedSecret), authInfo, sha256.Size)
	if err != nil {
		return nil, fmt.Errorf("webpush: derive ikm: %w", err)
	}

	context := aesgcmContext(receiverPublicKey, senderPublicKey)
	cekInfo := append(append([]byte(nil), cekLabel...), context...)
	nonceInfo := append(append([]byte(nil), nonceLabel...), context...)

	// Stage 2: combine the IKM with the per-message salt.
	prk := extract(salt, ikm)
	cek, err := expandOnce(prk, cekInfo, 16)
	if err != nil {
		return nil, fmt.Errorf("webpush: derive content encryption key: %w", err)
	}
	nonce, err := expandOnce(prk, nonceInfo, 12)
	if err != nil {
		return nil, fmt.Errorf("webpush: derive nonce: %w", err)
	}

	if recordSize > 0 && len(ciphertext) > recordSize {
		return nil, fmt.Errorf("webpush: ciphertext length %d exceeds record size %d", len(ciphertext), recordSize)
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("webpush: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("webpush: gcm: %w", err)
	}

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("webpush: gcm open: %w", err)
	}
	return unpad(plain)
}

// aesgcmContext builds the "P-256\0" + len-prefixed receiver/sender public
// key context the legacy aesgcm encoding mixes into its HKDF info strings.
func aesgcmContext(receiverPublicKey, senderPublicKey []byte) []byte {
	var ctx []byte
	ctx = append(ctx, "P-256\x00"...)
	ctx = binary.BigEndian.AppendUint16(ctx, uint16(len(receiverPublicKey)))
	ctx = append(ctx, receiverPublicKey...)
	ctx = binary.BigEndian.AppendUint16(ctx, uint16(len(senderPublicKey)))
	ctx = append(ctx, senderPublicKey...)
	return ctx
}

// extract is the HKDF-Extract step: an HMAC-SHA256 of ikm keyed by salt.
func extract(salt, ikm []byte) []byte {
	return hkdf.Extract(sha256.New, ikm, salt)
}

// expandOnce runs HKDF-Expand for a single fixed-length output.
func expandOnce(prk, info []byte, length int) ([]byte, error) {
	r := hkdf.Expand(sha256.New, prk, info)
	out := make([]byte, length)
	if _, err := r.Read(out); err != nil {
		return nil, err
	}
	return out, nil
}

// unpad strips the legacy aesgcm 2-byte big-endian pad-length prefix and the
// padding bytes that follow it.
func unpad(record []byte) ([]byte, error) {
	if len(record) < padLength {
		return nil, fmt.Errorf("webpush: record shorter than pad prefix")
	}
	padLen := binary.BigEndian.Uint16(record[:padLength])
	rest := record[padLength:]
	if int(padLen) > len(rest) {
		return nil, fmt.Errorf("webpush: pad length %d exceeds record", padLen)
	}
	pad := rest[:padLen]
	if !bytes.Equal(pad, make([]byte, padLen)) {
		return nil, fmt.Errorf("webpush: non-zero padding")
	}
	return rest[padLen:], nil
}
