package vault

import (
	"bytes"
	"errors"
	"testing"

	"github.com/whisperchain/whisper-api/internal/cryptobox"
)

func TestDeriveKey(t *testing.T) {
	salt := bytes.Repeat([]byte{1}, SaltSize)
	a := DeriveKey("hunter22", salt, Iterations, KeyBits)
	b := DeriveKey("hunter22", salt, Iterations, KeyBits)
	if len(a) != 32 || !bytes.Equal(a, b) {
		t.Fatalf("derivation must be deterministic and 256-bit")
	}
	other := DeriveKey("hunter22", bytes.Repeat([]byte{2}, SaltSize), Iterations, KeyBits)
	if bytes.Equal(a, other) {
		t.Fatalf("different salts must give different keys")
	}
}

func TestProtectReveal(t *testing.T) {
	kp, _ := cryptobox.GenerateKeyPair()
	ct, salt, err := Protect(kp.Private, "correct horse")
	if err != nil {
		t.Fatalf("protect: %v", err)
	}
	if len(salt) != SaltSize {
		t.Fatalf("expected %d byte salt, got %d", SaltSize, len(salt))
	}

	got, err := Reveal(ct, salt, "correct horse")
	if err != nil || !bytes.Equal(got, kp.Private) {
		t.Fatalf("reveal failed: %v", err)
	}
	if _, err := Reveal(ct, salt, "wrong horse"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}

	_, salt2, _ := Protect(kp.Private, "correct horse")
	if bytes.Equal(salt, salt2) {
		t.Fatalf("every protect must use a fresh salt")
	}
}

func TestReveal_MissingMaterial(t *testing.T) {
	if _, err := Reveal(nil, make([]byte, SaltSize), "pw"); !errors.Is(err, ErrKeyMaterialMissing) {
		t.Fatalf("expected ErrKeyMaterialMissing, got %v", err)
	}
	if _, err := Reveal([]byte("abc"), nil, "pw"); !errors.Is(err, ErrKeyMaterialMissing) {
		t.Fatalf("expected ErrKeyMaterialMissing, got %v", err)
	}
	if _, err := Reveal([]byte("too short"), make([]byte, SaltSize), "pw"); !errors.Is(err, ErrKeyMaterialMissing) {
		t.Fatalf("expected ErrKeyMaterialMissing for truncated blob, got %v", err)
	}
}

func TestVault_Lifecycle(t *testing.T) {
	kp, _ := cryptobox.GenerateKeyPair()
	ct, salt, _ := Protect(kp.Private, "pw-12345")
	sealed, _ := cryptobox.Seal(kp.Public, []byte("hello"))

	var v Vault
	if _, err := v.DecryptMessage(sealed); !errors.Is(err, ErrVaultLocked) {
		t.Fatalf("expected ErrVaultLocked, got %v", err)
	}
	if err := v.Unlock(ct, salt, "nope"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}
	if v.IsUnlocked() {
		t.Fatalf("failed unlock must leave the vault locked")
	}

	if err := v.Unlock(ct, salt, "pw-12345"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	got, err := v.DecryptMessage(sealed)
	if err != nil || string(got) != "hello" {
		t.Fatalf("decrypt: %q %v", got, err)
	}

	other, _ := cryptobox.GenerateKeyPair()
	foreign, _ := cryptobox.Seal(other.Public, []byte("not for you"))
	if _, err := v.DecryptMessage(foreign); !errors.Is(err, ErrDecryption) {
		t.Fatalf("expected ErrDecryption, got %v", err)
	}

	cached := v.private
	v.Lock()
	if v.IsUnlocked() {
		t.Fatalf("vault must be locked")
	}
	if !bytes.Equal(cached, make([]byte, len(cached))) {
		t.Fatalf("lock must zero the cached key")
	}
	if _, err := v.DecryptMessage(sealed); !errors.Is(err, ErrVaultLocked) {
		t.Fatalf("expected ErrVaultLocked after lock, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	kp, _ := cryptobox.GenerateKeyPair()
	ct, salt, _ := Protect(kp.Private, "old-password")

	if _, _, err := ChangePassword(ct, salt, "guess", "new-password"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got %v", err)
	}

	ct2, salt2, err := ChangePassword(ct, salt, "old-password", "new-password")
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := Reveal(ct2, salt2, "old-password"); !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("old password must stop working")
	}
	got, err := Reveal(ct2, salt2, "new-password")
	if err != nil || !bytes.Equal(got, kp.Private) {
		t.Fatalf("new password must reveal the same key: %v", err)
	}
}
