package ports

import (
	"context"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// MessagePage is one page of messages.
type MessagePage struct {
	Items      []*domain.Message
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

type MessageService interface {
	Inbox(ctx context.Context, recipientID string, page, limit int) (*MessagePage, error)
	MarkRead(ctx context.Context, messageID, recipientID string) error
	Flag(ctx context.Context, messageID, recipientID, reason string) (*domain.Message, error)
	ListFlagged(ctx context.Context, includeResolved bool, page, limit int) (*MessagePage, error)
}
