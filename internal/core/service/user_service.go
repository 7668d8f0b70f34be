package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

// UserService owns the approval workflow.
type UserService struct {
	repo  ports.UserRepository
	audit ports.AuditRepository
	log   zerolog.Logger
}

func NewUserService(repo ports.UserRepository, audit ports.AuditRepository, log zerolog.Logger) *UserService {
	return &UserService{repo: repo, audit: audit, log: log}
}

// IsApproved reports false for unknown users.
func (s *UserService) IsApproved(ctx context.Context, userID string) (bool, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		return false, storageErr("is approved", err)
	}
	return u.IsApproved(), nil
}

func (s *UserService) Status(ctx context.Context, username string) (*domain.User, error) {
	u, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, storageErr("user status", err)
	}
	return u, nil
}

// ListReceivers returns approved receivers, i.e. valid recipients.
func (s *UserService) ListReceivers(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.ListByApproval(ctx, domain.ApprovalApproved, domain.RoleReceiver)
	if err != nil {
		return nil, storageErr("list receivers", err)
	}
	return users, nil
}

func (s *UserService) ListPending(ctx context.Context) ([]*domain.User, error) {
	users, err := s.repo.ListByApproval(ctx, domain.ApprovalPending, "")
	if err != nil {
		return nil, storageErr("list pending", err)
	}
	return users, nil
}

func (s *UserService) Approve(ctx context.Context, userID, adminID string) (*domain.User, error) {
	return s.setApproval(ctx, userID, adminID, domain.ApprovalApproved, domain.ActionUserApproved)
}

func (s *UserService) Reject(ctx context.Context, userID, adminID string) (*domain.User, error) {
	return s.setApproval(ctx, userID, adminID, domain.ApprovalRejected, domain.ActionUserRejected)
}

// setApproval is a no-op, without an audit entry, when the state is unchanged.
func (s *UserService) setApproval(
	ctx context.Context,
	userID, adminID string,
	state domain.ApprovalState,
	action domain.ActionType,
) (*domain.User, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, storageErr(string(action), err)
	}
	if u.Role == domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	if u.Approval == state {
		return u, nil
	}

	now := time.Now().UTC()
	updated, err := s.repo.SetApproval(ctx, userID, state, now)
	if err != nil {
		return nil, storageErr(string(action), err)
	}

	// The approval stands even if the audit write fails.
	entry := &domain.AuditLogEntry{
		ActionType:     action,
		ModeratorID:    adminID,
		AffectedUserID: userID,
		Details:        "role=" + updated.Role,
		CreatedAt:      now,
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Str("action", string(action)).Msg("failed to append audit entry")
	}

	s.log.Info().Str("user_id", userID).Str("admin_id", adminID).Str("status", string(state)).Msg("approval updated")
	return updated, nil
}
