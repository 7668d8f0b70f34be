package domain

import "time"

// ActionType names an auditable state change.
type ActionType string

const (
	ActionWarn           ActionType = "warn"
	ActionFreeze         ActionType = "freeze"
	ActionUnfreeze       ActionType = "unfreeze"
	ActionBanTemp5Min    ActionType = "ban_temp_5min"
	ActionBanTemp1Hour   ActionType = "ban_temp_1hour"
	ActionUserApproved   ActionType = "user_approved"
	ActionUserRejected   ActionType = "user_rejected"
	ActionMessageFlagged ActionType = "message_flagged"
)

// ValidActionType reports whether a is one of the known action types.
func ValidActionType(a ActionType) bool {
	switch a {
	case ActionWarn, ActionFreeze, ActionUnfreeze, ActionBanTemp5Min, ActionBanTemp1Hour,
		ActionUserApproved, ActionUserRejected, ActionMessageFlagged:
		return true
	}
	return false
}

// ActionForBan maps a temp ban type to its audit action.
func ActionForBan(b BanType) ActionType {
	if b == BanTemp5Min {
		return ActionBanTemp5Min
	}
	return ActionBanTemp1Hour
}

// AuditLogEntry is an append-only record of a moderation or admin action.
// Token-scoped entries never carry the sender's user ID.
type AuditLogEntry struct {
	ID             string     `json:"id" bson:"_id"`
	ActionType     ActionType `json:"action_type" bson:"action_type"`
	Token          Token      `json:"token_hash,omitempty" bson:"token_hash,omitempty"`
	ModeratorID    string     `json:"moderator_id,omitempty" bson:"moderator_id,omitempty"`
	AffectedUserID string     `json:"affected_user_id,omitempty" bson:"affected_user_id,omitempty"`
	Details        string     `json:"details,omitempty" bson:"details,omitempty"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}
