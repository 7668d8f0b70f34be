package domain

import "time"

// Message is an end-to-end encrypted message as stored by the server. The
// server only ever holds ciphertext and the sender's window token.
type Message struct {
	ID          string `json:"id"`
	SenderToken Token  `json:"sender_token"`
	RecipientID string `json:"recipient_id"`
	// Ciphertext is a sealed box for the recipient's public key.
	Ciphertext []byte    `json:"ciphertext"`
	WindowID   WindowID  `json:"window_id"`
	CreatedAt  time.Time `json:"created_at"`
	Read       bool      `json:"read"`

	Flagged      bool       `json:"flagged"`
	FlagReason   string     `json:"flag_reason,omitempty"`
	FlaggedAt    *time.Time `json:"flagged_at,omitempty"`
	FlagResolved bool       `json:"flag_resolved"`
	ResolvedBy   string     `json:"resolved_by,omitempty"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}
