package models

import "time"

// PasswordResetToken is a single-use reset credential, at most one per email.
// Only the SHA-256 of the token is stored; the raw value travels in the
// emailed link.
type PasswordResetToken struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)"`
	Email     string    `gorm:"not null;uniqueIndex:idx_password_reset_tokens_email"`
	TokenHash string    `gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
	CreatedAt time.Time
}

// Expired reports whether the token is past its expiry at now.
func (t *PasswordResetToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
