// Package token implements the self-describing encrypted registration token.
// A token carries the patient identity payload AES-256-GCM encrypted under a
// key derived from the token's own issuance timestamp, so no server-side key
// store is needed to decode it.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// ErrDecode is returned for any token that cannot be decoded: unparseable
// framing, failed authentication, or a payload of the wrong shape. Callers
// must not distinguish the cases in user-facing output.
var ErrDecode = errors.New("token: decode failed")

const (
	keyLength  = 32
	ivLength   = 16
	iterations = 100000

	keyMaterialPrefix = "medical-line-system-"
)

// IssuedAtLayout is the millisecond-resolution UTC timestamp format stamped
// into every issued payload. Millisecond resolution keeps derived keys unique
// per issuance.
const IssuedAtLayout = "2006-01-02T15:04:05.000Z"

// RegistrationPayload is the identity payload embedded in every token.
// JSON field names are part of the wire format of already-issued tokens and
// must not change.
type RegistrationPayload struct {
	PatientID   string `json:"userId"`
	PatientName string `json:"patientName"`
	IssuedAt    string `json:"timestamp"`
}

// envelope is the outer framing of an encoded token, visible as base64(JSON).
// KeyTimestamp equals the payload's IssuedAt and re-derives the key on decode.
type envelope struct {
	EncryptedData string `json:"encryptedData"`
	IV            string `json:"iv"`
	AuthTag       string `json:"authTag"`
	Timestamp     string `json:"timestamp"`
	KeyTimestamp  string `json:"keyTimestamp"`
}

// DeriveKey deterministically derives the AES-256 key for a given issuance
// timestamp: PBKDF2-SHA256 over a prefixed key-material string, salted with
// the leading 16 bytes of SHA-256(timestamp). Two tokens issued at the same
// instant share a key; issuers guarantee timestamp uniqueness.
func DeriveKey(timestamp string) []byte {
	sum := sha256.Sum256([]byte(timestamp))
	salt := sum[:16]
	return pbkdf2.Key([]byte(keyMaterialPrefix+timestamp), salt, iterations, keyLength, sha256.New)
}

// Encode serializes and authenticated-encrypts the payload under the key
// derived from p.IssuedAt, with a fresh random IV per call.
func Encode(p RegistrationPayload) (string, error) {
	plaintext, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("token: marshal payload: %w", err)
	}

	aead, err := newAEAD(DeriveKey(p.IssuedAt))
	if err != nil {
		return "", err
	}

	iv := make([]byte, ivLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("token: generate iv: %w", err)
	}

	// Seal appends the 16-byte auth tag to the ciphertext; the envelope
	// carries them as separate fields.
	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext, tag := sealed[:len(sealed)-aead.Overhead()], sealed[len(sealed)-aead.Overhead():]

	env := envelope{
		EncryptedData: base64.StdEncoding.EncodeToString(ciphertext),
		IV:            base64.StdEncoding.EncodeToString(iv),
		AuthTag:       base64.StdEncoding.EncodeToString(tag),
		Timestamp:     time.Now().UTC().Format(IssuedAtLayout),
		KeyTimestamp:  p.IssuedAt,
	}
	framed, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("token: marshal envelope: %w", err)
	}
	return base64.StdEncoding.EncodeToString(framed), nil
}

// Decode reverses Encode. The auth tag must verify under the key derived from
// the envelope's own KeyTimestamp before any payload field is read; every
// failure path wraps ErrDecode.
func Decode(s string) (RegistrationPayload, error) {
	var zero RegistrationPayload

	framed, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return zero, fmt.Errorf("%w: envelope base64: %v", ErrDecode, err)
	}
	var env envelope
	if err := json.Unmarshal(framed, &env); err != nil {
		return zero, fmt.Errorf("%w: envelope json: %v", ErrDecode, err)
	}

	ciphertext, err := base64.StdEncoding.DecodeString(env.EncryptedData)
	if err != nil {
		return zero, fmt.Errorf("%w: ciphertext base64: %v", ErrDecode, err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return zero, fmt.Errorf("%w: iv base64: %v", ErrDecode, err)
	}
	tag, err := base64.StdEncoding.DecodeString(env.AuthTag)
	if err != nil {
		return zero, fmt.Errorf("%w: auth tag base64: %v", ErrDecode, err)
	}

	aead, err := newAEAD(DeriveKey(env.KeyTimestamp))
	if err != nil {
		return zero, err
	}
	if len(iv) != aead.NonceSize() {
		return zero, fmt.Errorf("%w: iv length %d", ErrDecode, len(iv))
	}

	plaintext, err := aead.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return zero, fmt.Errorf("%w: authentication", ErrDecode)
	}

	var p RegistrationPayload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return zero, fmt.Errorf("%w: payload json: %v", ErrDecode, err)
	}
	if p.PatientID == "" || p.IssuedAt == "" {
		return zero, fmt.Errorf("%w: payload shape", ErrDecode)
	}
	return p, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("token: create cipher: %w", err)
	}
	// 16-byte nonces match the envelope format of previously issued tokens.
	aead, err := cipher.NewGCMWithNonceSize(block, ivLength)
	if err != nil {
		return nil, fmt.Errorf("token: create GCM: %w", err)
	}
	return aead, nil
}
