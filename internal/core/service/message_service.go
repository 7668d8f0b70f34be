package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

const maxFlagReason = 500

// MessageService serves the receiver inbox and the flag queue.
type MessageService struct {
	repo  ports.MessageRepository
	audit ports.AuditRepository
	log   zerolog.Logger
}

func NewMessageService(repo ports.MessageRepository, audit ports.AuditRepository, log zerolog.Logger) *MessageService {
	return &MessageService{repo: repo, audit: audit, log: log}
}

// Inbox returns the recipient's messages, newest first.
func (s *MessageService) Inbox(ctx context.Context, recipientID string, page, limit int) (*ports.MessagePage, error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.repo.ListByRecipient(ctx, recipientID, page, limit)
	if err != nil {
		return nil, storageErr("inbox", err)
	}
	return &ports.MessagePage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func (s *MessageService) MarkRead(ctx context.Context, messageID, recipientID string) error {
	if err := s.repo.MarkRead(ctx, messageID, recipientID); err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return err
		}
		return storageErr("mark read", err)
	}
	return nil
}

// Flag reports a message to moderators. The audit entry names the sender's
// token only.
func (s *MessageService) Flag(ctx context.Context, messageID, recipientID, reason string) (*domain.Message, error) {
	if r := []rune(reason); len(r) > maxFlagReason {
		reason = string(r[:maxFlagReason])
	}
	now := time.Now().UTC()
	msg, err := s.repo.Flag(ctx, messageID, recipientID, reason, now)
	if err != nil {
		if errors.Is(err, domain.ErrMessageNotFound) {
			return nil, err
		}
		return nil, storageErr("flag message", err)
	}

	entry := &domain.AuditLogEntry{
		ActionType: domain.ActionMessageFlagged,
		Token:      msg.SenderToken,
		Details:    "message=" + msg.ID,
		CreatedAt:  now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("message_id", msg.ID).Msg("failed to append audit entry")
	}

	s.log.Info().Str("message_id", msg.ID).Str("token", string(msg.SenderToken)).Msg("message flagged")
	return msg, nil
}

func (s *MessageService) ListFlagged(ctx context.Context, includeResolved bool, page, limit int) (*ports.MessagePage, error) {
	page, limit = normalizePage(page, limit)
	items, total, err := s.repo.ListFlagged(ctx, includeResolved, page, limit)
	if err != nil {
		return nil, storageErr("list flagged", err)
	}
	return &ports.MessagePage{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}
