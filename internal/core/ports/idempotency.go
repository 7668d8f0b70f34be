package ports

import (
	"context"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// IdempotencyStore remembers which message a (token, key) pair produced.
// A send first reserves the pair; only the reserving caller may insert.
type IdempotencyStore interface {
	// Reserve atomically claims the pair for ttl. When it is already claimed,
	// reserved is false and messageID is the stored id, empty while the
	// claiming send is still in flight.
	Reserve(ctx context.Context, token domain.Token, key string, ttl time.Duration) (messageID string, reserved bool, err error)
	// Remember completes a reservation with the inserted message id.
	Remember(ctx context.Context, token domain.Token, key, messageID string, ttl time.Duration) error
	// Release drops a reservation that never produced a message.
	Release(ctx context.Context, token domain.Token, key string) error
}

// KeyedExecutor runs fn so that calls sharing a key never overlap and run in
// submission order. Calls with different keys may run in parallel.
type KeyedExecutor interface {
	Submit(ctx context.Context, key string, fn func(ctx context.Context) error) error
}
