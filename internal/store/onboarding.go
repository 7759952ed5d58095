package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/linkedgrow/dashboard/internal/models"
	"gorm.io/datatypes"
)

// onboardingFields are the User fields added after the users table first
// shipped. Older databases may lack them.
var onboardingFields = []string{
	"OnboardingComplete",
	"OnboardingRole",
	"OnboardingDiscovery",
	"OnboardingTerms",
	"OnboardingMarketing",
}

// EnsureOnboardingColumns adds any missing onboarding column. Safe to call
// repeatedly; after the first success it is a no-op.
func (s *Gorm) EnsureOnboardingColumns(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.onboardingReady {
		return nil
	}

	m := s.db.WithContext(ctx).Migrator()
	for _, field := range onboardingFields {
		if m.HasColumn(&models.User{}, field) {
			continue
		}
		if err := m.AddColumn(&models.User{}, field); err != nil {
			return fmt.Errorf("add column %s: %w", field, err)
		}
	}
	s.onboardingReady = true
	return nil
}

// HasOnboardingColumns reports whether the users table has every onboarding column.
func (s *Gorm) HasOnboardingColumns(ctx context.Context) bool {
	s.mu.Lock()
	ready := s.onboardingReady
	s.mu.Unlock()
	if ready {
		return true
	}

	m := s.db.WithContext(ctx).Migrator()
	for _, field := range onboardingFields {
		if !m.HasColumn(&models.User{}, field) {
			return false
		}
	}
	return true
}

// GetOnboarding returns the onboarding columns of a user. An existing user in
// a table without the columns yields an empty, incomplete record.
func (s *Gorm) GetOnboarding(ctx context.Context, userID string) (*OnboardingRecord, error) {
	var u models.User
	if !s.HasOnboardingColumns(ctx) {
		err := s.db.WithContext(ctx).Select("id").Where("id = ?", userID).Take(&u).Error
		if err != nil {
			return nil, notFound(err)
		}
		return &OnboardingRecord{}, nil
	}

	err := s.db.WithContext(ctx).
		Select("id", "onboarding_complete", "onboarding_role", "onboarding_discovery", "onboarding_terms", "onboarding_marketing").
		Where("id = ?", userID).
		Take(&u).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &OnboardingRecord{
		Complete:  u.OnboardingComplete,
		Role:      rawOrNil(u.OnboardingRole),
		Discovery: rawOrNil(u.OnboardingDiscovery),
		Terms:     rawOrNil(u.OnboardingTerms),
		Marketing: u.OnboardingMarketing,
	}, nil
}

func (s *Gorm) SaveOnboardingRole(ctx context.Context, userID string, data json.RawMessage) error {
	return s.saveOnboarding(ctx, userID, map[string]any{"onboarding_role": datatypes.JSON(data)})
}

func (s *Gorm) SaveOnboardingDiscovery(ctx context.Context, userID string, data json.RawMessage) error {
	return s.saveOnboarding(ctx, userID, map[string]any{"onboarding_discovery": datatypes.JSON(data)})
}

// CompleteOnboarding writes terms, marketing and the completion flag in one UPDATE.
func (s *Gorm) CompleteOnboarding(ctx context.Context, userID string, terms json.RawMessage, marketing bool) error {
	return s.saveOnboarding(ctx, userID, map[string]any{
		"onboarding_terms":     datatypes.JSON(terms),
		"onboarding_marketing": marketing,
		"onboarding_complete":  true,
	})
}

func (s *Gorm) saveOnboarding(ctx context.Context, userID string, values map[string]any) error {
	if err := s.EnsureOnboardingColumns(ctx); err != nil {
		return err
	}
	return s.updateUser(ctx, userID, values)
}

func rawOrNil(j datatypes.JSON) json.RawMessage {
	if len(j) == 0 || string(j) == "null" {
		return nil
	}
	return json.RawMessage(j)
}
