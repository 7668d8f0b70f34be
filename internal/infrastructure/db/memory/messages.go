package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// MessageRepository implements ports.MessageRepository.
type MessageRepository struct {
	s *Store
}

func cloneMessage(m *domain.Message) *domain.Message {
	c := *m
	c.Ciphertext = append([]byte(nil), m.Ciphertext...)
	return &c
}

func (r *MessageRepository) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	msg.ID = uuid.NewString()
	r.s.seq++
	r.s.msgSeq[msg.ID] = r.s.seq
	r.s.messages[msg.ID] = cloneMessage(msg)
	return nil
}

func (r *MessageRepository) FindByID(_ context.Context, id string) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, domain.ErrMessageNotFound
	}
	return cloneMessage(m), nil
}

func (r *MessageRepository) ListByRecipient(_ context.Context, recipientID string, page, limit int) ([]*domain.Message, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*domain.Message
	for _, m := range r.s.messages {
		if m.RecipientID == recipientID {
			matched = append(matched, m)
		}
	}
	return r.page(matched, page, limit), int64(len(matched)), nil
}

func (r *MessageRepository) MarkRead(_ context.Context, id, recipientID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok || m.RecipientID != recipientID {
		return domain.ErrMessageNotFound
	}
	m.Read = true
	return nil
}

func (r *MessageRepository) Flag(_ context.Context, id, recipientID, reason string, at time.Time) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok || m.RecipientID != recipientID {
		return nil, domain.ErrMessageNotFound
	}
	flaggedAt := at
	m.Flagged = true
	m.FlagReason = reason
	m.FlaggedAt = &flaggedAt
	m.FlagResolved = false
	m.ResolvedBy = ""
	m.ResolvedAt = nil
	return cloneMessage(m), nil
}

func (r *MessageRepository) ListFlagged(_ context.Context, includeResolved bool, page, limit int) ([]*domain.Message, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var matched []*domain.Message
	for _, m := range r.s.messages {
		if !m.Flagged {
			continue
		}
		if m.FlagResolved && !includeResolved {
			continue
		}
		matched = append(matched, m)
	}
	return r.page(matched, page, limit), int64(len(matched)), nil
}

func (r *MessageRepository) Resolve(_ context.Context, id, moderatorID string, at time.Time) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok || !m.Flagged {
		return nil, domain.ErrMessageNotFound
	}
	resolvedAt := at
	m.FlagResolved = true
	m.ResolvedBy = moderatorID
	m.ResolvedAt = &resolvedAt
	return cloneMessage(m), nil
}

// page must be called with the store lock held.
func (r *MessageRepository) page(matched []*domain.Message, page, limit int) []*domain.Message {
	sortMessagesNewestFirst(r.s, matched)
	start, end := paginate(len(matched), page, limit)
	out := make([]*domain.Message, 0, end-start)
	for _, m := range matched[start:end] {
		out = append(out, cloneMessage(m))
	}
	return out
}
