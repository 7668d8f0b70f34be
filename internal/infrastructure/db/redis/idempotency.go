package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// pendingMarker holds a reserved key until the send stores its message.
const pendingMarker = "pending"

// releaseScript deletes the key only while it still holds the marker, so a
// completed reservation is never dropped.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// IdempotencyStore maps (token, Idempotency-Key) to the message a send produced.
// Key format: send:<token>:<idempotency_key>
type IdempotencyStore struct {
	client *redis.Client
}

// NewIdempotencyStore creates an IdempotencyStore wrapping the given Redis client.
func NewIdempotencyStore(client *redis.Client) *IdempotencyStore {
	return &IdempotencyStore{client: client}
}

// Reserve claims the pair with SETNX on the pending marker.
func (s *IdempotencyStore) Reserve(ctx context.Context, token domain.Token, key string, ttl time.Duration) (string, bool, error) {
	k := s.key(token, key)
	ok, err := s.client.SetNX(ctx, k, pendingMarker, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("idempotency reserve: %w", err)
	}
	if ok {
		return "", true, nil
	}

	v, err := s.client.Get(ctx, k).Result()
	switch {
	case errors.Is(err, redis.Nil):
		// expired or released since SETNX; the caller tries again
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("idempotency reserve: %w", err)
	case v == pendingMarker:
		return "", false, nil
	}
	return v, false, nil
}

// Remember replaces the pending marker with messageID.
func (s *IdempotencyStore) Remember(ctx context.Context, token domain.Token, key, messageID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(token, key), messageID, ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

// Release drops the reservation if it still holds the pending marker.
func (s *IdempotencyStore) Release(ctx context.Context, token domain.Token, key string) error {
	if err := releaseScript.Run(ctx, s.client, []string{s.key(token, key)}, pendingMarker).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func (s *IdempotencyStore) key(token domain.Token, key string) string {
	return fmt.Sprintf("send:%s:%s", token, key)
}
