// Package vault keeps a receiver's private key encrypted at rest under a
// password-derived key and holds the decrypted key in memory only while the
// vault is unlocked.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/whisperchain/whisper-api/internal/cryptobox"
)

const (
	Iterations = 10000
	KeyBits    = 256
	SaltSize   = 16
)

var (
	// ErrWrongPassword is deliberately generic: it does not say whether the
	// password or the stored blob was at fault.
	ErrWrongPassword      = errors.New("wrong password")
	ErrVaultLocked        = errors.New("vault is locked")
	ErrDecryption         = errors.New("message cannot be decrypted")
	ErrKeyMaterialMissing = errors.New("key material missing or corrupt, re-register")
)

// DeriveKey runs PBKDF2-HMAC-SHA256 over password and salt.
func DeriveKey(password string, salt []byte, iterations, keyBits int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keyBits/8, sha256.New)
}

// Protect encrypts privateKey under a key derived from password and a fresh
// random salt. The result is nonce || AES-256-GCM ciphertext; the caller
// stores it together with the salt.
func Protect(privateKey []byte, password string) (ciphertext, salt []byte, err error) {
	salt = make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, nil, fmt.Errorf("generate salt: %w", err)
	}

	aead, err := newAEAD(DeriveKey(password, salt, Iterations, KeyBits))
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, privateKey, nil), salt, nil
}

// Reveal decrypts a blob produced by Protect. A wrong password fails the
// GCM tag check and yields ErrWrongPassword.
func Reveal(ciphertext, salt []byte, password string) ([]byte, error) {
	if len(salt) != SaltSize || len(ciphertext) == 0 {
		return nil, ErrKeyMaterialMissing
	}
	aead, err := newAEAD(DeriveKey(password, salt, Iterations, KeyBits))
	if err != nil {
		return nil, err
	}
	ns := aead.NonceSize()
	if len(ciphertext) < ns+aead.Overhead() {
		return nil, ErrKeyMaterialMissing
	}
	plain, err := aead.Open(nil, ciphertext[:ns], ciphertext[ns:], nil)
	if err != nil {
		return nil, ErrWrongPassword
	}
	return plain, nil
}

// ChangePassword re-protects the key under newPassword with a fresh salt.
func ChangePassword(ciphertext, salt []byte, oldPassword, newPassword string) ([]byte, []byte, error) {
	plain, err := Reveal(ciphertext, salt, oldPassword)
	if err != nil {
		return nil, nil, err
	}
	defer zero(plain)
	return Protect(plain, newPassword)
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	return cipher.NewGCM(block)
}

// Vault caches one user's decrypted private key for the life of a session.
// The zero value is a locked vault.
type Vault struct {
	mu      sync.Mutex
	private []byte
	public  []byte
}

// Unlock decrypts the stored key and caches it. Key derivation runs before
// the vault's lock is taken.
func (v *Vault) Unlock(ciphertext, salt []byte, password string) error {
	plain, err := Reveal(ciphertext, salt, password)
	if err != nil {
		return err
	}
	pub, err := cryptobox.PublicKeyOf(plain)
	if err != nil {
		zero(plain)
		return ErrKeyMaterialMissing
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	zero(v.private)
	v.private, v.public = plain, pub
	return nil
}

func (v *Vault) IsUnlocked() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.private != nil
}

// Lock zeroes the cached key.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	zero(v.private)
	v.private, v.public = nil, nil
}

// DecryptMessage opens a sealed message with the cached key. It fails fast
// with ErrVaultLocked when the vault is locked.
func (v *Vault) DecryptMessage(ciphertext []byte) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.private == nil {
		return nil, ErrVaultLocked
	}
	plain, err := cryptobox.Open(v.public, v.private, ciphertext)
	if err != nil {
		return nil, ErrDecryption
	}
	return plain, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
