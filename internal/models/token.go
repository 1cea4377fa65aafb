package models

import "time"

// RefreshToken is a server-side refresh session. The token string is opaque;
// revocation happens by flipping Revoked, never by deleting the row, so the
// trail of sessions per user stays inspectable.
type RefreshToken struct {
	ID        string     `db:"id"`
	UserID    string     `db:"user_id"`
	Token     string     `db:"token"`
	Revoked   bool       `db:"revoked"`
	RevokedAt *time.Time `db:"revoked_at"`
	ExpiresAt time.Time  `db:"expires_at"`
	IPAddress string     `db:"ip_address"`
	UserAgent string     `db:"user_agent"`
	CreatedAt time.Time  `db:"created_at"`
}
