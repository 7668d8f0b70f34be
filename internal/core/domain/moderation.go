package domain

import "time"

// BanType records the most recent block applied to a token.
type BanType string

const (
	BanNone            BanType = "none"
	BanTemp5Min        BanType = "temp_5min"
	BanTemp1Hour       BanType = "temp_1hour"
	BanPermanentFreeze BanType = "permanent_freeze"
)

// BanTypeFor maps a requested temp ban length to its BanType.
func BanTypeFor(d time.Duration) (BanType, error) {
	switch d {
	case 5 * time.Minute:
		return BanTemp5Min, nil
	case time.Hour:
		return BanTemp1Hour, nil
	}
	return BanNone, ErrInvalidBanDuration
}

// Duration is the ban length for temp ban types, zero otherwise.
func (b BanType) Duration() time.Duration {
	switch b {
	case BanTemp5Min:
		return 5 * time.Minute
	case BanTemp1Hour:
		return time.Hour
	}
	return 0
}

func (b BanType) IsTemp() bool {
	return b == BanTemp5Min || b == BanTemp1Hour
}

// ModerationRecord is the per-token enforcement state. It is created lazily
// on the first send attempt or moderation action that references the token
// and is never deleted. Fields are only mutated through the transition
// methods below.
type ModerationRecord struct {
	Token Token `json:"token" bson:"_id"`
	// OwnerID is the sender the token was issued to. Server-side only; it is
	// never serialised to API clients.
	OwnerID       string     `json:"-" bson:"owner_id,omitempty"`
	IsFrozen      bool       `json:"is_frozen" bson:"is_frozen"`
	BanExpiry     *time.Time `json:"ban_expiry,omitempty" bson:"ban_expiry,omitempty"`
	BanType       BanType    `json:"ban_type" bson:"ban_type"`
	WarningIssued bool       `json:"warning_issued" bson:"warning_issued"`
	CreatedAt     time.Time  `json:"created_at" bson:"created_at"`
	LastActionAt  time.Time  `json:"last_action_at" bson:"last_action_at"`
	// Version is bumped on every committed write and used for compare-and-swap.
	Version int64 `json:"-" bson:"version"`
}

// NewModerationRecord returns a clean Active record.
func NewModerationRecord(token Token, ownerID string, now time.Time) *ModerationRecord {
	return &ModerationRecord{
		Token:        token,
		OwnerID:      ownerID,
		BanType:      BanNone,
		CreatedAt:    now,
		LastActionAt: now,
	}
}

// Clone returns a deep copy.
func (r *ModerationRecord) Clone() *ModerationRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.BanExpiry != nil {
		exp := *r.BanExpiry
		c.BanExpiry = &exp
	}
	return &c
}

// Warn marks the token as warned. Warnings never block sending.
func (r *ModerationRecord) Warn(now time.Time) {
	r.WarningIssued = true
	r.LastActionAt = now
}

// Freeze blocks the token until an explicit Unfreeze. IsFrozen alone carries
// the freeze; a temp ban already recorded keeps its type and expiry.
func (r *ModerationRecord) Freeze(now time.Time) {
	r.IsFrozen = true
	if !r.BanType.IsTemp() {
		r.BanType = BanPermanentFreeze
	}
	r.LastActionAt = now
}

// Unfreeze lifts a freeze. A temp ban that has not expired keeps running.
func (r *ModerationRecord) Unfreeze(now time.Time) {
	r.IsFrozen = false
	if r.BanType == BanPermanentFreeze {
		r.BanType = BanNone
	}
	r.LastActionAt = now
}

// TempBan blocks the token for d. A running temp ban that already outlasts
// now+d is left untouched, frozen or not; the return value reports whether
// the expiry moved.
func (r *ModerationRecord) TempBan(d time.Duration, now time.Time) (bool, error) {
	banType, err := BanTypeFor(d)
	if err != nil {
		return false, err
	}
	r.LastActionAt = now

	expiry := now.Add(d)
	if r.BanExpiry != nil && !expiry.After(*r.BanExpiry) {
		return false, nil
	}
	r.BanExpiry = &expiry
	r.BanType = banType
	return true, nil
}

// StatusAt evaluates the record at now. Expired temp bans are reported as
// not blocking without clearing BanExpiry/BanType. A nil record is Active.
func (r *ModerationRecord) StatusAt(now time.Time) Status {
	if r == nil {
		return Status{Kind: StatusActive, BanType: BanNone}
	}
	if r.IsFrozen {
		return Status{Kind: StatusFrozen, BanType: BanPermanentFreeze}
	}
	if r.BanExpiry != nil && now.Before(*r.BanExpiry) {
		exp := *r.BanExpiry
		return Status{
			Kind:      StatusTempBanned,
			BanType:   r.BanType,
			Remaining: exp.Sub(now),
			ExpiresAt: &exp,
		}
	}
	if r.WarningIssued {
		return Status{Kind: StatusWarned, BanType: BanNone}
	}
	return Status{Kind: StatusActive, BanType: BanNone}
}

// StatusKind tags the Status variant.
type StatusKind int

const (
	StatusActive StatusKind = iota
	StatusWarned
	StatusTempBanned
	StatusFrozen
)

func (k StatusKind) String() string {
	switch k {
	case StatusActive:
		return "active"
	case StatusWarned:
		return "warned"
	case StatusTempBanned:
		return "temp_banned"
	case StatusFrozen:
		return "frozen"
	}
	return "unknown"
}

// Status is the enforcement status of a token at a point in time.
// Remaining and ExpiresAt are only set for StatusTempBanned.
type Status struct {
	Kind      StatusKind
	BanType   BanType
	Remaining time.Duration
	ExpiresAt *time.Time
}

// Worse returns whichever of a and b takes precedence:
// Frozen > TempBanned > Warned > Active, longer ban wins between two temp bans.
func Worse(a, b Status) Status {
	if b.Kind > a.Kind {
		return b
	}
	if a.Kind == StatusTempBanned && b.Kind == StatusTempBanned && b.Remaining > a.Remaining {
		return b
	}
	return a
}
