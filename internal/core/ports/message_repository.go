package ports

import (
	"context"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// MessageRepository persists sealed messages. It never sees plaintext.
type MessageRepository interface {
	// Create stores msg and assigns msg.ID.
	Create(ctx context.Context, msg *domain.Message) error
	FindByID(ctx context.Context, id string) (*domain.Message, error)
	// ListByRecipient returns a newest-first page and the total count.
	ListByRecipient(ctx context.Context, recipientID string, page, limit int) ([]*domain.Message, int64, error)
	// MarkRead is scoped to recipientID; other recipients get domain.ErrMessageNotFound.
	MarkRead(ctx context.Context, id, recipientID string) error
	Flag(ctx context.Context, id, recipientID, reason string, at time.Time) (*domain.Message, error)
	ListFlagged(ctx context.Context, includeResolved bool, page, limit int) ([]*domain.Message, int64, error)
	Resolve(ctx context.Context, id, moderatorID string, at time.Time) (*domain.Message, error)
}
