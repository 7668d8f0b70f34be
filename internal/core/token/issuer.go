// Package token derives the rotating pseudonymous sender tokens.
//
// A token is hex(HMAC-SHA256(secret, utf8(userID) ++ utf8(decimal(windowID)))).
// With an empty secret the plain SHA-256 of the same input is used, which is
// what independent clients can reproduce without sharing a key.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

type cacheEntry struct {
	window domain.WindowID
	token  domain.Token
}

// Issuer is safe for concurrent use. It is the only token authority in the
// process; clients may hold a token but only as a hint.
type Issuer struct {
	secret []byte

	mu    sync.Mutex
	cache map[string]cacheEntry
	swept domain.WindowID
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		cache:  make(map[string]cacheEntry),
	}
}

// CurrentWindow returns floor(now_ms / 120000).
func (i *Issuer) CurrentWindow(now time.Time) domain.WindowID {
	return domain.WindowAt(now)
}

// TokenFor is deterministic for a given (userID, window) and secret.
func (i *Issuer) TokenFor(userID string, window domain.WindowID) domain.Token {
	var h hash.Hash
	if len(i.secret) == 0 {
		h = sha256.New()
	} else {
		h = hmac.New(sha256.New, i.secret)
	}
	h.Write([]byte(userID))
	h.Write([]byte(window.String()))
	return domain.Token(hex.EncodeToString(h.Sum(nil)))
}

// CachedTokenForCurrentWindow memoizes TokenFor for the window containing now.
// Entries from earlier windows are evicted before the lookup.
func (i *Issuer) CachedTokenForCurrentWindow(userID string, now time.Time) domain.Token {
	window := i.CurrentWindow(now)

	i.mu.Lock()
	defer i.mu.Unlock()

	if window > i.swept {
		for id, e := range i.cache {
			if e.window < window {
				delete(i.cache, id)
			}
		}
		i.swept = window
	}

	if e, ok := i.cache[userID]; ok && e.window == window {
		return e.token
	}

	tok := i.TokenFor(userID, window)
	i.cache[userID] = cacheEntry{window: window, token: tok}
	return tok
}

// Cached reports the number of memoized tokens.
func (i *Issuer) Cached() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.cache)
}
