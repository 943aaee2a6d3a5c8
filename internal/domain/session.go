package domain

import "time"

// Session is the server-side row for an issued session token. Only the
// keyed hash of the token is stored.
type Session struct {
	ID        string     `gorm:"primaryKey;size:36" json:"id"`
	UserID    string     `gorm:"size:36;not null;index" json:"user_id"`
	TokenHash string     `gorm:"size:128;not null;uniqueIndex" json:"-"`
	UserAgent string     `gorm:"size:512" json:"user_agent"`
	IP        string     `gorm:"size:64" json:"ip"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// SessionRecord is the client-held claim of identity. It is a cache for UI
// gating only and must be re-validated server-side on protected calls.
type SessionRecord struct {
	User      Identity  `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Valid reports whether the record is structurally complete and unexpired.
func (r *SessionRecord) Valid(now time.Time) bool {
	if r == nil {
		return false
	}
	if r.User.ID == "" || r.Token == "" || r.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(r.ExpiresAt)
}

// SessionMeta carries request attributes stored alongside a new session.
type SessionMeta struct {
	UserAgent string
	IP        string
}
