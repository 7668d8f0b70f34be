// Package session scopes a KeyVault to one logged-in user. Logout, explicit
// lock and TTL expiry all drop the decrypted key, whichever comes first.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/whisperchain/whisper-api/internal/client/keystore"
	"github.com/whisperchain/whisper-api/internal/client/vault"
)

var (
	ErrSessionExpired  = errors.New("session expired")
	ErrSessionNotFound = errors.New("session not found")
)

// Session owns exactly one vault.
type Session struct {
	ID     string
	UserID string

	vault     vault.Vault
	mu        sync.Mutex
	expiresAt time.Time
	closed    bool
	now       func() time.Time
}

func newSession(userID string, ttl time.Duration, now func() time.Time) *Session {
	return &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		expiresAt: now().Add(ttl),
		now:       now,
	}
}

// Unlock opens the vault with the stored key material.
func (s *Session) Unlock(m keystore.KeyMaterial, password string) error {
	if err := s.check(); err != nil {
		return err
	}
	return s.vault.Unlock(m.EncryptedPrivateKey, m.Salt, password)
}

// DecryptMessage decrypts with the session's vault. On an expired session
// the key is dropped and ErrSessionExpired returned.
func (s *Session) DecryptMessage(ciphertext []byte) ([]byte, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	return s.vault.DecryptMessage(ciphertext)
}

func (s *Session) IsUnlocked() bool {
	return s.check() == nil && s.vault.IsUnlocked()
}

// Lock drops the key but keeps the session open.
func (s *Session) Lock() {
	s.vault.Lock()
}

// Close ends the session (logout).
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.vault.Lock()
}

// Expired reports whether the TTL has passed or the session was closed.
func (s *Session) Expired() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed || !s.now().Before(s.expiresAt)
}

func (s *Session) check() error {
	if s.Expired() {
		s.vault.Lock()
		return ErrSessionExpired
	}
	return nil
}

// Manager tracks live sessions. Each user gets their own session and vault;
// nothing is shared between users.
type Manager struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]*Session
}

// NewManager returns a manager whose sessions live for ttl. now defaults to
// time.Now.
func NewManager(ttl time.Duration, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{ttl: ttl, now: now, sessions: make(map[string]*Session)}
}

// Open starts a new session for userID.
func (m *Manager) Open(userID string) *Session {
	s := newSession(userID, m.ttl, m.now)
	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()
	return s
}

// Get returns a live session. Expired sessions are closed and removed.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.Expired() {
		m.Close(id)
		return nil, ErrSessionExpired
	}
	return s, nil
}

// Close logs a session out.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if ok {
		s.Close()
	}
}

// Sweep closes every expired session and returns how many were removed.
func (m *Manager) Sweep() int {
	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.Expired() {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	return len(expired)
}
