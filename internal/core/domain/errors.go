package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidRole        = errors.New("invalid role")
	ErrInvalidPublicKey   = errors.New("invalid public key")
	ErrForbidden          = errors.New("access forbidden")

	ErrNotApproved        = errors.New("account is not approved")
	ErrInvalidRecipient   = errors.New("recipient cannot receive messages")
	ErrMessageNotFound    = errors.New("message not found")
	ErrRecordNotFound     = errors.New("moderation record not found")
	ErrInvalidToken       = errors.New("malformed token")
	ErrInvalidBanDuration = errors.New("ban duration must be 5m or 1h")
	ErrNotFrozen          = errors.New("token is not frozen")
	ErrInvalidActionType  = errors.New("unknown audit action type")
	ErrWindowMismatch     = errors.New("token does not belong to the current window")
	ErrSendInProgress     = errors.New("a send with this idempotency key is still in progress")

	// ErrVersionConflict is returned by stores when a compare-and-swap on a
	// moderation record loses the race. The ledger retries it internally.
	ErrVersionConflict = errors.New("moderation record version conflict")

	// ErrStorageUnavailable is transient; callers retry with backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// BannedError rejects a send because the sender's token is frozen or
// temporarily banned. Status is always Frozen or TempBanned.
type BannedError struct {
	Status Status
}

func (e *BannedError) Error() string {
	switch e.Status.Kind {
	case StatusFrozen:
		return "sender is frozen"
	case StatusTempBanned:
		return fmt.Sprintf("sender is temporarily banned (%s, %s remaining)",
			e.Status.BanType, e.Status.Remaining.Round(time.Second))
	default:
		return "sender is blocked"
	}
}

// Permanent reports whether the block has no expiry.
func (e *BannedError) Permanent() bool {
	return e.Status.Kind == StatusFrozen
}

// RetryAfter is how long the caller should wait before trying again.
// Zero for permanent blocks.
func (e *BannedError) RetryAfter() time.Duration {
	if e.Permanent() {
		return 0
	}
	return e.Status.Remaining
}
