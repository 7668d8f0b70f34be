package memory

import (
	"context"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// IdempotencyStore implements ports.IdempotencyStore with lazy expiry. An
// entry with an empty messageID is a pending reservation.
type IdempotencyStore struct {
	s *Store
}

func idempotencyKey(token domain.Token, key string) string {
	return "send:" + string(token) + ":" + key
}

func (i *IdempotencyStore) Reserve(_ context.Context, token domain.Token, key string, ttl time.Duration) (string, bool, error) {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	k := idempotencyKey(token, key)
	now := i.s.now()
	if e, ok := i.s.idempotency[k]; ok && now.Before(e.expiresAt) {
		return e.messageID, false, nil
	}
	i.s.idempotency[k] = idempotencyEntry{expiresAt: now.Add(ttl)}
	return "", true, nil
}

func (i *IdempotencyStore) Remember(_ context.Context, token domain.Token, key, messageID string, ttl time.Duration) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	i.s.idempotency[idempotencyKey(token, key)] = idempotencyEntry{
		messageID: messageID,
		expiresAt: i.s.now().Add(ttl),
	}
	return nil
}

func (i *IdempotencyStore) Release(_ context.Context, token domain.Token, key string) error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()

	k := idempotencyKey(token, key)
	if e, ok := i.s.idempotency[k]; ok && e.messageID == "" {
		delete(i.s.idempotency, k)
	}
	return nil
}
