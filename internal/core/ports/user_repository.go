package ports

import (
	"context"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// UserRepository defines persistence operations for accounts.
type UserRepository interface {
	// Create inserts a new user and returns it with its assigned ID.
	// Returns domain.ErrUserExists when the username is taken.
	Create(ctx context.Context, user *domain.User) (*domain.User, error)
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
	FindByID(ctx context.Context, id string) (*domain.User, error)
	// ListByApproval returns users in the given approval state, oldest first.
	// An empty role matches every role.
	ListByApproval(ctx context.Context, state domain.ApprovalState, role string) ([]*domain.User, error)
	SetApproval(ctx context.Context, id string, state domain.ApprovalState, at time.Time) (*domain.User, error)
}
