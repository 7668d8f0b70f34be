package ports

import (
	"context"
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// SendInput is a send attempt from an authenticated sender.
type SendInput struct {
	SenderID    string
	RecipientID string
	Ciphertext  []byte
	// TokenHint is the token the client believes is current. Optional; when
	// set it must equal the server's token for the current window.
	TokenHint      domain.Token
	IdempotencyKey string
	Now            time.Time
}

// SendResult describes an accepted send.
type SendResult struct {
	MessageID string
	Token     domain.Token
	WindowID  domain.WindowID
	// Warned is informational; a warned token still sends.
	Warned bool
	// Replayed is true when the Idempotency-Key matched an earlier send.
	Replayed bool
}

// SendGate admits or rejects sends. Rejections are returned as errors:
// domain.ErrNotApproved, *domain.BannedError, domain.ErrWindowMismatch,
// domain.ErrInvalidRecipient or domain.ErrStorageUnavailable.
type SendGate interface {
	TrySend(ctx context.Context, in SendInput) (*SendResult, error)
}
