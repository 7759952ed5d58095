package models

import (
	"time"

	"github.com/linkedgrow/dashboard/internal/crypto"
	"gorm.io/gorm"
)

var encryptor *crypto.TokenEncryptor

// InitEncryption installs the encryptor used for provider tokens.
// Without it identities are stored in plain text (tests, local dev).
func InitEncryption(encryptionKey string) error {
	enc, err := crypto.NewTokenEncryptor(encryptionKey)
	if err != nil {
		return err
	}
	encryptor = enc
	return nil
}

// AuthIdentity links a user to an OAuth provider account.
type AuthIdentity struct {
	ID             uint   `gorm:"primaryKey"`
	UserID         string `gorm:"not null;index;type:varchar(64)"`
	Provider       string `gorm:"not null;uniqueIndex:idx_auth_identities_provider_user"` // e.g. "google"
	ProviderUserID string `gorm:"not null;uniqueIndex:idx_auth_identities_provider_user"`
	AccessToken    string `gorm:"type:text"` // encrypted at rest
	RefreshToken   string `gorm:"type:text"` // encrypted at rest
	TokenExpiry    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BeforeSave encrypts provider tokens. GCM nonces are random so the stored
// value changes on every save.
func (a *AuthIdentity) BeforeSave(tx *gorm.DB) error {
	if encryptor == nil {
		return nil
	}

	var err error
	if a.AccessToken, err = encryptor.Encrypt(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = encryptor.Encrypt(a.RefreshToken); err != nil {
		return err
	}
	return nil
}

// AfterSave restores plaintext on the in-memory struct so callers keep working with it.
func (a *AuthIdentity) AfterSave(tx *gorm.DB) error {
	return a.AfterFind(tx)
}

// AfterFind decrypts provider tokens.
func (a *AuthIdentity) AfterFind(tx *gorm.DB) error {
	if encryptor == nil {
		return nil
	}

	var err error
	if a.AccessToken, err = encryptor.Decrypt(a.AccessToken); err != nil {
		return err
	}
	if a.RefreshToken, err = encryptor.Decrypt(a.RefreshToken); err != nil {
		return err
	}
	return nil
}
