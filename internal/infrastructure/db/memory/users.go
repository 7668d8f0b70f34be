package memory

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// UserRepository implements ports.UserRepository.
type UserRepository struct {
	s *Store
}

func (r *UserRepository) Create(_ context.Context, user *domain.User) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.usernames[user.Username]; ok {
		return nil, domain.ErrUserExists
	}
	clone := *user
	// ObjectID hex keeps IDs fixed-length, same as the Mongo backend.
	clone.ID = primitive.NewObjectID().Hex()
	r.s.users[clone.ID] = &clone
	r.s.usernames[clone.Username] = clone.ID

	out := clone
	return &out, nil
}

func (r *UserRepository) FindByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	id, ok := r.s.usernames[username]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *r.s.users[id]
	return &out, nil
}

func (r *UserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) ListByApproval(_ context.Context, state domain.ApprovalState, role string) ([]*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var out []*domain.User
	for _, u := range r.s.users {
		if u.Approval != state {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		clone := *u
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *UserRepository) SetApproval(_ context.Context, id string, state domain.ApprovalState, at time.Time) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	u.Approval = state
	u.UpdatedAt = at
	out := *u
	return &out, nil
}
