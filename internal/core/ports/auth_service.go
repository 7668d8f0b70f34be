package ports

import (
	"context"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Username  string
	Password  string
	Role      string
	PublicKey string // base64 X25519 public key, required for receivers
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	Login(ctx context.Context, username, password string) (string, *domain.User, error)
}
