package ports

import (
	"context"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// ModerationRepository stores per-token moderation records together with the
// audit entries produced by their transitions.
type ModerationRepository interface {
	// Get returns domain.ErrRecordNotFound when the token has never been referenced.
	Get(ctx context.Context, token domain.Token) (*domain.ModerationRecord, error)

	// Touch returns the record for token, creating a clean one if absent.
	// When the stored record has no owner yet, ownerID is recorded.
	Touch(ctx context.Context, token domain.Token, ownerID string, now time.Time) (*domain.ModerationRecord, error)

	// Apply persists rec and appends entry in one atomic step. rec.Version must
	// be the version that was read (0 for a record that does not exist yet);
	// a concurrent writer makes Apply fail with domain.ErrVersionConflict.
	// On success rec.Version is incremented.
	Apply(ctx context.Context, rec *domain.ModerationRecord, entry *domain.AuditLogEntry) error

	// ListActiveBySubject returns the frozen or still-banned records whose
	// tokens were issued to ownerID.
	ListActiveBySubject(ctx context.Context, ownerID string, now time.Time) ([]*domain.ModerationRecord, error)
}
