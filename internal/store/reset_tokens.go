package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkedgrow/dashboard/internal/models"
	"gorm.io/gorm/clause"
)

// ReplaceResetToken stores t as the only token for t.Email. The unique
// index on email makes the upsert atomic, so concurrent requests for one
// address leave exactly one live token.
func (s *Gorm) ReplaceResetToken(ctx context.Context, t *models.PasswordResetToken) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "email"}},
			DoUpdates: clause.AssignmentColumns([]string{"id", "token_hash", "expires_at", "created_at"}),
		}).
		Create(t).Error
	if err != nil {
		return fmt.Errorf("upsert reset token: %w", err)
	}
	return nil
}

func (s *Gorm) FindResetToken(ctx context.Context, email, tokenHash string) (*models.PasswordResetToken, error) {
	var t models.PasswordResetToken
	err := s.db.WithContext(ctx).
		Where("email = ? AND token_hash = ?", email, tokenHash).
		Take(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func (s *Gorm) DeleteResetToken(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PasswordResetToken{}).Error; err != nil {
		return fmt.Errorf("delete reset token: %w", err)
	}
	return nil
}

func (s *Gorm) DeleteResetTokensForEmail(ctx context.Context, email string) error {
	if err := s.db.WithContext(ctx).Where("email = ?", email).Delete(&models.PasswordResetToken{}).Error; err != nil {
		return fmt.Errorf("delete reset tokens: %w", err)
	}
	return nil
}

// PurgeExpiredResetTokens removes tokens past expiry and returns how many went.
func (s *Gorm) PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&models.PasswordResetToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge reset tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
