// Package cryptobox seals messages to a receiver's X25519 public key with
// NaCl anonymous sealed boxes. Only the holder of the matching private key
// can open them; the sender stays anonymous to the box itself.
package cryptobox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of X25519 public and private keys.
const KeySize = 32

var (
	ErrDecryption = errors.New("message cannot be decrypted with this key")
	ErrInvalidKey = errors.New("key must be 32 bytes")
)

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// GenerateKeyPair returns a fresh key pair from crypto/rand.
func GenerateKeyPair() (*KeyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	return &KeyPair{Public: pub[:], Private: priv[:]}, nil
}

// PublicKeyOf recomputes the public half of an X25519 private key.
func PublicKeyOf(private []byte) ([]byte, error) {
	if len(private) != KeySize {
		return nil, ErrInvalidKey
	}
	return curve25519.X25519(private, curve25519.Basepoint)
}

// Seal encrypts plaintext so that only the owner of recipientPublic can read it.
func Seal(recipientPublic, plaintext []byte) ([]byte, error) {
	pub, err := toArray(recipientPublic)
	if err != nil {
		return nil, err
	}
	out, err := box.SealAnonymous(nil, plaintext, pub, rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	return out, nil
}

// Open decrypts a sealed box. Any mismatch or corruption is ErrDecryption.
func Open(public, private, ciphertext []byte) ([]byte, error) {
	pub, err := toArray(public)
	if err != nil {
		return nil, err
	}
	priv, err := toArray(private)
	if err != nil {
		return nil, err
	}
	out, ok := box.OpenAnonymous(nil, ciphertext, pub, priv)
	if !ok {
		return nil, ErrDecryption
	}
	return out, nil
}

// EncodeKey renders a key the way the API transports it.
func EncodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

// DecodeKey parses a base64 key and checks its length.
func DecodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	return key, nil
}

func toArray(key []byte) (*[KeySize]byte, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKey
	}
	var a [KeySize]byte
	copy(a[:], key)
	return &a, nil
}
