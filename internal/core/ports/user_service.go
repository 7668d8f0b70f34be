package ports

import (
	"context"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// ApprovalChecker is the approval-workflow collaborator consulted before
// every send.
type ApprovalChecker interface {
	IsApproved(ctx context.Context, userID string) (bool, error)
}

// UserService exposes account status and the admin approval workflow.
type UserService interface {
	ApprovalChecker
	Status(ctx context.Context, username string) (*domain.User, error)
	ListReceivers(ctx context.Context) ([]*domain.User, error)
	ListPending(ctx context.Context) ([]*domain.User, error)
	Approve(ctx context.Context, userID, adminID string) (*domain.User, error)
	Reject(ctx context.Context, userID, adminID string) (*domain.User, error)
}
