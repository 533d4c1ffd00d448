package domain

import (
	"time"
)

// Session is the server-side record binding an identity to its current
// access/refresh token pair. One live record per identity: issuing a new
// session replaces any prior record, refreshing mutates it in place.
type Session struct {
	Identity         string    `json:"identity" db:"identity"`
	AccessTokenHash  string    `json:"-" db:"access_token_hash"`
	RefreshTokenHash string    `json:"-" db:"refresh_token_hash"`
	IssuedAt         time.Time `json:"issued_at" db:"issued_at"`
	ExpiresAt        time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}

// IsExpired reports whether the session window has closed. Rotation never
// moves ExpiresAt forward, so this eventually becomes true for every
// session no matter how often it is refreshed.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
