package keystore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/whisperchain/whisper-api/internal/client/vault"
)

func TestFileStore_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "bob.json")
	store := NewFileStore(path)

	ct, salt, err := vault.Protect(bytes.Repeat([]byte{7}, 32), "pw-12345")
	if err != nil {
		t.Fatalf("protect: %v", err)
	}
	if err := store.Save(KeyMaterial{EncryptedPrivateKey: ct, Salt: salt}); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("expected 0600, got %o", perm)
	}

	m, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !bytes.Equal(m.EncryptedPrivateKey, ct) || !bytes.Equal(m.Salt, salt) {
		t.Fatalf("material changed on round trip")
	}
}

func TestFileStore_Missing(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewFileStore(filepath.Join(dir, "absent.json")).Load(); !errors.Is(err, vault.ErrKeyMaterialMissing) {
		t.Fatalf("expected ErrKeyMaterialMissing, got %v", err)
	}

	for name, content := range map[string]string{
		"garbage.json":   "{not json",
		"empty.json":     "{}",
		"truncated.json": `{"encrypted_private_key":"AAAA","salt":"AAAA"}`,
	} {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := NewFileStore(path).Load(); !errors.Is(err, vault.ErrKeyMaterialMissing) {
			t.Errorf("%s: expected ErrKeyMaterialMissing, got %v", name, err)
		}
	}
}
