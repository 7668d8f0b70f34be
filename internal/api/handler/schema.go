package handler

import (
	"time"

	"github.com/whisperchain/whisper-api/internal/core/domain"
)

// --- Auth ---

type registerRequest struct {
	Username  string `json:"username"   validate:"required,min=3,max=50,alphanum"`
	Password  string `json:"password"   validate:"required,min=8,max=72"`
	Role      string `json:"role"       validate:"required,oneof=sender receiver moderator"`
	PublicKey string `json:"public_key" validate:"omitempty,base64"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token,omitempty"`
	User  *domain.User `json:"user,omitempty"`
}

type receiverResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	PublicKey string `json:"public_key"`
}

// --- Tokens ---

type currentTokenResponse struct {
	Token       domain.Token    `json:"token"`
	WindowID    domain.WindowID `json:"window_id"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	ExpiresIn   int64           `json:"expires_in_seconds"`
}

// --- Messages ---

type sendMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	// Ciphertext is base64 in JSON.
	Ciphertext []byte       `json:"ciphertext" validate:"required,max=65536"`
	TokenHint  domain.Token `json:"token_hint,omitempty"`
}

type sendMessageResponse struct {
	MessageID string          `json:"message_id"`
	Token     domain.Token    `json:"token"`
	WindowID  domain.WindowID `json:"window_id"`
	Warned    bool            `json:"warned"`
	Replayed  bool            `json:"replayed,omitempty"`
}

type flagRequest struct {
	Reason string `json:"reason" validate:"max=2000"`
}

type messagePageResponse struct {
	Items []*domain.Message `json:"items"`
	pageMeta
}

// --- Moderation ---

type banRequest struct {
	// Duration is "5m" or "1h".
	Duration string `json:"duration" validate:"required,oneof=5m 1h"`
}

type tokenStatusResponse struct {
	Token            domain.Token             `json:"token"`
	Status           string                   `json:"status"`
	BanType          domain.BanType           `json:"ban_type"`
	RemainingSeconds int64                    `json:"remaining_seconds,omitempty"`
	ExpiresAt        *time.Time               `json:"expires_at,omitempty"`
	Record           *domain.ModerationRecord `json:"record,omitempty"`
}

type auditQuery struct {
	pageQuery
	Token       string `query:"token"        validate:"omitempty,len=64,hexadecimal"`
	ActionType  string `query:"action_type"`
	ModeratorID string `query:"moderator_id"`
}

type auditPageResponse struct {
	Items []*domain.AuditLogEntry `json:"items"`
	pageMeta
}

// --- Rejections ---

// BannedResponse is the 403 body for a blocked sender.
type BannedResponse struct {
	Error            string         `json:"error"`
	Kind             string         `json:"kind"`
	BanType          domain.BanType `json:"ban_type"`
	RemainingSeconds int64          `json:"remaining_seconds,omitempty"`
}

type windowMismatchResponse struct {
	Error    string          `json:"error"`
	WindowID domain.WindowID `json:"window_id"`
}

// NewBannedResponse renders a *domain.BannedError.
func NewBannedResponse(err *domain.BannedError) BannedResponse {
	resp := BannedResponse{
		Error:   err.Error(),
		Kind:    err.Status.Kind.String(),
		BanType: err.Status.BanType,
	}
	if !err.Permanent() {
		resp.RemainingSeconds = ceilSeconds(err.RetryAfter())
	}
	return resp
}

// ceilSeconds rounds d up to whole seconds.
func ceilSeconds(d time.Duration) int64 {
	s := int64(d / time.Second)
	if d%time.Second > 0 {
		s++
	}
	return s
}
