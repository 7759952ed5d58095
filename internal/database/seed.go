package database

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

// Development accounts created by SeedDevData.
const (
	DevAdminEmail = "dev@linkedgrow.local"
	DevNewEmail   = "new@linkedgrow.local"
	DevPassword   = "devpassword"
)

// SeedDevData populates the database with development test data.
// Idempotent: skips if data already exists.
func SeedDevData(ctx context.Context, s *store.Gorm, log *zap.Logger) error {
	// Check if seed data already exists
	if _, err := s.GetUserByEmail(ctx, DevAdminEmail); err == nil {
		log.Info("Seed data already exists, skipping")
		return nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(DevPassword)
	if err != nil {
		return err
	}

	// Onboarded admin who opted in to marketing email
	admin := &models.User{
		Email:        DevAdminEmail,
		Name:         "Dev User",
		PasswordHash: &hash,
		Role:         models.RoleAdmin,
	}
	if err := s.CreateUser(ctx, admin); err != nil {
		return err
	}
	if err := s.SaveOnboardingRole(ctx, admin.ID, json.RawMessage(`{"role":"founder"}`)); err != nil {
		return err
	}
	if err := s.SaveOnboardingDiscovery(ctx, admin.ID, json.RawMessage(`{"source":"seed"}`)); err != nil {
		return err
	}
	if err := s.CompleteOnboarding(ctx, admin.ID, json.RawMessage(`{"accepted":true,"version":"dev"}`), true); err != nil {
		return err
	}

	// Sample Google identity for the admin
	identity := &models.AuthIdentity{
		UserID:         admin.ID,
		Provider:       "google",
		ProviderUserID: "dev-google-id-12345",
		AccessToken:    "dev-access-token-placeholder",
		RefreshToken:   "dev-refresh-token-placeholder",
	}
	if err := s.UpsertIdentity(ctx, identity); err != nil {
		return err
	}

	// Fresh free account that still has to onboard
	fresh := &models.User{Email: DevNewEmail, Name: "New User", PasswordHash: &hash}
	if err := s.CreateUser(ctx, fresh); err != nil {
		return err
	}

	log.Info("Seeded dev data: 2 users, 1 auth identity",
		zap.String("admin", DevAdminEmail),
		zap.String("new_user", DevNewEmail),
	)
	return nil
}
