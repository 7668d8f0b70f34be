package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// ModerationRepository implements ports.ModerationRepository. Records and
// their audit entries live under the same lock, so Apply is atomic.
type ModerationRepository struct {
	s *Store
}

func (r *ModerationRepository) Get(_ context.Context, token domain.Token) (*domain.ModerationRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[token]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

func (r *ModerationRepository) Touch(_ context.Context, token domain.Token, ownerID string, now time.Time) (*domain.ModerationRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.records[token]
	if !ok {
		rec = domain.NewModerationRecord(token, ownerID, now)
		rec.Version = 1
		r.s.records[token] = rec
		return rec.Clone(), nil
	}
	if rec.OwnerID == "" && ownerID != "" {
		rec.OwnerID = ownerID
		rec.Version++
	}
	return rec.Clone(), nil
}

func (r *ModerationRepository) Apply(_ context.Context, rec *domain.ModerationRecord, entry *domain.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.records[rec.Token]
	switch {
	case rec.Version == 0 && ok:
		return domain.ErrVersionConflict
	case rec.Version != 0 && (!ok || cur.Version != rec.Version):
		return domain.ErrVersionConflict
	}

	next := rec.Clone()
	next.Version = rec.Version + 1
	if ok && next.OwnerID == "" {
		next.OwnerID = cur.OwnerID
	}
	r.s.records[rec.Token] = next

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	e := *entry
	r.s.audit = append(r.s.audit, &e)

	rec.Version = next.Version
	return nil
}

func (r *ModerationRepository) ListActiveBySubject(_ context.Context, ownerID string, now time.Time) ([]*domain.ModerationRecord, error) {
	if ownerID == "" {
		return nil, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*domain.ModerationRecord
	for _, rec := range r.s.records {
		if rec.OwnerID != ownerID {
			continue
		}
		if k := rec.StatusAt(now).Kind; k == domain.StatusFrozen || k == domain.StatusTempBanned {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}
