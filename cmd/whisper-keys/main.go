// Command whisper-keys manages the client-side key pair: it generates and
// password-protects the X25519 private key, seals messages for a receiver's
// public key and opens ciphertext fetched from the inbox.
package main

import (
	"encoding/base64"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/whisperchain/whisper-api/internal/client/keystore"
	"github.com/whisperchain/whisper-api/internal/client/session"
	"github.com/whisperchain/whisper-api/internal/client/vault"
	"github.com/whisperchain/whisper-api/internal/cryptobox"
	"github.com/whisperchain/whisper-api/pkg/logger"
)

const usage = `usage: whisper-keys <command> [flags]

commands:
  keygen   generate a key pair and store the encrypted private key
  pubkey   print the stored public key
  passwd   re-encrypt the stored private key under a new password
  seal     encrypt a message for a receiver's public key
  open     decrypt a message with the stored private key
`

var errNoPublicKey = errors.New("public key not recorded in the key store, run keygen -force to create a new key pair")

// readPassword is swapped in tests.
var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func main() {
	log := logger.Init(logger.Options{Level: "warn", Pretty: true, Output: os.Stderr})
	if err := run(os.Args[1:], os.Stdout, log); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Error().Err(err).Msg("whisper-keys failed")
		os.Exit(1)
	}
}

func run(args []string, out io.Writer, log zerolog.Logger) error {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return flag.ErrHelp
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "keygen":
		return keygen(rest, out)
	case "pubkey":
		return pubkey(rest, out)
	case "passwd":
		return passwd(rest, out)
	case "seal":
		return seal(rest, out)
	case "open":
		return open(rest, out, log)
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "whisper", "keys.json")
}

func storeFlag(fs *flag.FlagSet) *string {
	return fs.String("store", defaultStorePath(), "path of the key store file")
}

func keygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := storeFlag(fs)
	force := fs.Bool("force", false, "overwrite an existing key store")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := keystore.NewFileStore(*path)
	if _, err := store.Load(); err == nil && !*force {
		return fmt.Errorf("key store %s already exists, use -force to replace it", store.Path())
	}

	password, err := newPassword()
	if err != nil {
		return err
	}
	kp, err := cryptobox.GenerateKeyPair()
	if err != nil {
		return err
	}
	ct, salt, err := vault.Protect(kp.Private, password)
	if err != nil {
		return err
	}
	pub := cryptobox.EncodeKey(kp.Public)
	if err := store.Save(keystore.KeyMaterial{EncryptedPrivateKey: ct, Salt: salt, PublicKey: pub}); err != nil {
		return err
	}
	fmt.Fprintln(out, pub)
	return nil
}

func pubkey(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pubkey", flag.ContinueOnError)
	path := storeFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	m, err := keystore.NewFileStore(*path).Load()
	if err != nil {
		return err
	}
	if m.PublicKey == "" {
		return errNoPublicKey
	}
	fmt.Fprintln(out, m.PublicKey)
	return nil
}

func passwd(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	path := storeFlag(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	store := keystore.NewFileStore(*path)
	m, err := store.Load()
	if err != nil {
		return err
	}
	old, err := readPassword("Current password: ")
	if err != nil {
		return err
	}
	next, err := newPassword()
	if err != nil {
		return err
	}
	ct, salt, err := vault.ChangePassword(m.EncryptedPrivateKey, m.Salt, old, next)
	if err != nil {
		return err
	}
	m.EncryptedPrivateKey, m.Salt = ct, salt
	if err := store.Save(m); err != nil {
		return err
	}
	fmt.Fprintln(out, "password changed")
	return nil
}

func seal(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("seal", flag.ContinueOnError)
	pub := fs.String("pub", "", "receiver public key (base64)")
	msg := fs.String("msg", "", "plaintext message; read from stdin when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}
	key, err := cryptobox.DecodeKey(*pub)
	if err != nil {
		return err
	}
	plaintext := []byte(*msg)
	if len(plaintext) == 0 {
		if plaintext, err = io.ReadAll(os.Stdin); err != nil {
			return err
		}
	}
	ct, err := cryptobox.Seal(key, plaintext)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, base64.StdEncoding.EncodeToString(ct))
	return nil
}

func open(args []string, out io.Writer, log zerolog.Logger) error {
	fs := flag.NewFlagSet("open", flag.ContinueOnError)
	path := storeFlag(fs)
	in := fs.String("in", "", "base64 ciphertext; read from stdin when empty")
	ttl := fs.Duration("ttl", 5*time.Minute, "how long the unlocked key stays in memory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	store := keystore.NewFileStore(*path)
	m, err := store.Load()
	if err != nil {
		return err
	}

	raw := *in
	if raw == "" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		raw = string(b)
	}
	ct, err := base64.StdEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("ciphertext is not valid base64: %w", err)
	}

	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}

	sessions := session.NewManager(*ttl, nil)
	s := sessions.Open(os.Getenv("USER"))
	defer sessions.Close(s.ID)
	if err := s.Unlock(m, password); err != nil {
		return err
	}
	log.Debug().Str("session", s.ID).Msg("vault unlocked")

	plaintext, err := s.DecryptMessage(ct)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(plaintext))
	return err
}

func newPassword() (string, error) {
	p1, err := readPassword("New password: ")
	if err != nil {
		return "", err
	}
	if len(p1) < 8 {
		return "", errors.New("password must be at least 8 characters")
	}
	p2, err := readPassword("Repeat password: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", errors.New("passwords do not match")
	}
	return p1, nil
}
