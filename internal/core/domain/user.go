package domain

import "time"

const (
	RoleSender    = "sender"
	RoleReceiver  = "receiver"
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// ApprovalState is owned by the admin approval workflow.
type ApprovalState string

const (
	ApprovalPending  ApprovalState = "pending"
	ApprovalApproved ApprovalState = "approved"
	ApprovalRejected ApprovalState = "rejected"
)

// User models an authenticated actor in the system.
type User struct {
	ID           string        `json:"id"`
	Username     string        `json:"username"`
	PasswordHash string        `json:"-"`
	Role         string        `json:"role"`
	Approval     ApprovalState `json:"status"`
	PublicKey    string        `json:"public_key,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsApproved reports whether the admin workflow has approved the account.
func (u *User) IsApproved() bool {
	return u.Approval == ApprovalApproved
}

// ValidRegistrationRole reports whether role may be chosen at self-registration.
// Admin accounts are only ever bootstrapped from configuration.
func ValidRegistrationRole(role string) bool {
	switch role {
	case RoleSender, RoleReceiver, RoleModerator:
		return true
	}
	return false
}
