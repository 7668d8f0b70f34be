package ports

import (
	"context"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// AuditFilter carries the query parameters for reading the audit log.
type AuditFilter struct {
	Token       domain.Token      // optional
	ActionType  domain.ActionType // optional
	ModeratorID string            // optional
	OldestFirst bool              // false = newest first
	Page        int               // 1-based
	Limit       int               // capped at 100 by service
}

// AuditRepository is the append-only audit log. Entries are never updated.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditLogEntry) error
	List(ctx context.Context, filter AuditFilter) ([]*domain.AuditLogEntry, int64, error)
}
