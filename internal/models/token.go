package models

import "time"

// Token is an opaque bearer session credential.
type Token struct {
	ID        uint64    `db:"id" json:"-"`
	UserID    uint64    `db:"user_id" json:"-"`
	Token     string    `db:"token" json:"token"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Live reports whether the token has not yet expired at now.
func (t *Token) Live(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt)
}
