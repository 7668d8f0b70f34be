// Package keystore persists the password-protected private key on the
// client. Only the encrypted blob and its salt are written; the decrypted
// key never touches disk.
package keystore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/whisperchain/whisper-api/internal/client/vault"
)

// KeyMaterial is what a client stores between sessions.
type KeyMaterial struct {
	EncryptedPrivateKey []byte `json:"encrypted_private_key"`
	Salt                []byte `json:"salt"`
	// PublicKey is informational; it is recomputed from the private key on unlock.
	PublicKey string `json:"public_key,omitempty"`
}

// FileStore keeps KeyMaterial in one JSON file readable only by its owner.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

// Save writes m atomically with mode 0600.
func (s *FileStore) Save(m KeyMaterial) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key material: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create key directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod key file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close key file: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the stored material. A missing, unreadable or incomplete file
// is vault.ErrKeyMaterialMissing.
func (s *FileStore) Load() (KeyMaterial, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return KeyMaterial{}, vault.ErrKeyMaterialMissing
		}
		return KeyMaterial{}, fmt.Errorf("read key file: %w", err)
	}

	var m KeyMaterial
	if err := json.Unmarshal(data, &m); err != nil {
		return KeyMaterial{}, fmt.Errorf("%w: %v", vault.ErrKeyMaterialMissing, err)
	}
	if len(m.EncryptedPrivateKey) == 0 || len(m.Salt) != vault.SaltSize {
		return KeyMaterial{}, vault.ErrKeyMaterialMissing
	}
	return m, nil
}
