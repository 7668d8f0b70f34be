package service

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/whisperchain/whisper-api/internal/core/domain"
	"github.com/whisperchain/whisper-api/internal/core/ports"
)

const publicKeySize = 32

// AuthService implements registration and login.
type AuthService struct {
	repo      ports.UserRepository
	jwtSecret string
	tokenTTL  time.Duration
}

func NewAuthService(repo ports.UserRepository, jwtSecret string, tokenTTL time.Duration) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &AuthService{repo: repo, jwtSecret: jwtSecret, tokenTTL: tokenTTL}
}

// Register creates a pending account. Receivers must publish a public key so
// senders can seal messages for them.
func (s *AuthService) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.ErrInvalidCredentials
	}
	if !domain.ValidRegistrationRole(in.Role) {
		return nil, domain.ErrInvalidRole
	}
	if in.PublicKey != "" || in.Role == domain.RoleReceiver {
		if err := validatePublicKey(in.PublicKey); err != nil {
			return nil, err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &domain.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         in.Role,
		Approval:     domain.ApprovalPending,
		PublicKey:    in.PublicKey,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	created, err := s.repo.Create(ctx, user)
	if err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, storageErr("register", err)
	}
	return created, nil
}

// Login verifies the password and issues a JWT. Pending users may log in to
// check their status; rejected users may not.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	if username == "" || password == "" {
		return "", nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", nil, domain.ErrInvalidCredentials
		}
		return "", nil, storageErr("login", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return "", nil, domain.ErrInvalidCredentials
	}
	if user.Approval == domain.ApprovalRejected {
		return "", nil, domain.ErrNotApproved
	}

	token, err := s.generateToken(user)
	if err != nil {
		return "", nil, err
	}

	return token, user, nil
}

// EnsureAdmin creates the bootstrap admin account if it does not exist yet.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return domain.ErrInvalidCredentials
	}
	_, err := s.repo.FindByUsername(ctx, username)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return storageErr("ensure admin", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err = s.repo.Create(ctx, &domain.User{
		Username:     username,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		Approval:     domain.ApprovalApproved,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if errors.Is(err, domain.ErrUserExists) {
		return nil
	}
	return err
}

func (s *AuthService) generateToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"role":     user.Role,
		"iat":      now.Unix(),
		"exp":      now.Add(s.tokenTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString([]byte(s.jwtSecret))
}

func validatePublicKey(key string) error {
	raw, err := base64.StdEncoding.DecodeString(key)
	if err != nil || len(raw) != publicKeySize {
		return domain.ErrInvalidPublicKey
	}
	return nil
}
