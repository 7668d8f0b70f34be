package service

import (
	"context"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// AuditService is the read path over the audit log.
type AuditService struct {
	repo ports.AuditRepository
}

func NewAuditService(repo ports.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) ListAuditLog(ctx context.Context, f ports.AuditFilter) (*ports.AuditPage, error) {
	if f.ActionType != "" && !domain.ValidActionType(f.ActionType) {
		return nil, domain.ErrInvalidActionType
	}
	if f.Token != "" && !f.Token.Valid() {
		return nil, domain.ErrInvalidToken
	}
	f.Page, f.Limit = normalizePage(f.Page, f.Limit)

	items, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, storageErr("list audit log", err)
	}
	return &ports.AuditPage{
		Items:      items,
		Total:      total,
		Page:       f.Page,
		Limit:      f.Limit,
		TotalPages: totalPages(total, f.Limit),
	}, nil
}
