package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository.
type AuditRepository struct {
	s *Store
}

func (r *AuditRepository) Append(_ context.Context, entry *domain.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	e := *entry
	r.s.audit = append(r.s.audit, &e)
	return nil
}

func (r *AuditRepository) List(_ context.Context, f ports.AuditFilter) ([]*domain.AuditLogEntry, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	// r.s.audit is in append order, which is chronological
	var matched []*domain.AuditLogEntry
	for _, e := range r.s.audit {
		if f.Token != "" && e.Token != f.Token {
			continue
		}
		if f.ActionType != "" && e.ActionType != f.ActionType {
			continue
		}
		if f.ModeratorID != "" && e.ModeratorID != f.ModeratorID {
			continue
		}
		matched = append(matched, e)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if !f.OldestFirst {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	start, end := paginate(len(matched), f.Page, f.Limit)
	out := make([]*domain.AuditLogEntry, 0, end-start)
	for _, e := range matched[start:end] {
		c := *e
		out = append(out, &c)
	}
	return out, int64(len(matched)), nil
}
