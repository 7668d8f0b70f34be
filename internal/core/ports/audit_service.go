package ports

import (
	"context"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// AuditPage is one page of the audit log.
type AuditPage struct {
	Items      []*domain.AuditLogEntry
	Total      int64
	Page       int
	Limit      int
	TotalPages int
}

type AuditService interface {
	ListAuditLog(ctx context.Context, filter AuditFilter) (*AuditPage, error)
}
