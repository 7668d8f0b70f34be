package ports

import (
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// TokenIssuer derives the pseudonymous per-window sender token.
type TokenIssuer interface {
	CurrentWindow(now time.Time) domain.WindowID
	TokenFor(userID string, window domain.WindowID) domain.Token
	CachedTokenForCurrentWindow(userID string, now time.Time) domain.Token
}
