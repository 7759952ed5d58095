package store

import (
	"context"
	"fmt"

	"github.com/linkedgrow/dashboard/internal/models"
	"gorm.io/gorm/clause"
)

// UpsertIdentity stores provider tokens, keyed by (provider, provider_user_id).
func (s *Gorm) UpsertIdentity(ctx context.Context, identity *models.AuthIdentity) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider"}, {Name: "provider_user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "access_token", "refresh_token", "token_expiry", "updated_at"}),
	}).Create(identity).Error
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}
	return nil
}
