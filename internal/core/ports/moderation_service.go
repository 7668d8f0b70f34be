package ports

import (
	"context"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// ModerationService is the moderator-facing ledger. Every transition appends
// exactly one audit entry.
type ModerationService interface {
	Warn(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error)
	Freeze(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error)
	Unfreeze(ctx context.Context, token domain.Token, moderatorID string) (*domain.ModerationRecord, error)
	TempBan(ctx context.Context, token domain.Token, moderatorID string, d time.Duration) (*domain.ModerationRecord, error)
	// ResolveFlag is bookkeeping only: it never changes token state.
	ResolveFlag(ctx context.Context, messageID, moderatorID string) (*domain.Message, error)
	StatusOf(ctx context.Context, token domain.Token, now time.Time) (domain.Status, error)
	Record(ctx context.Context, token domain.Token) (*domain.ModerationRecord, error)
}
