package store

import (
	"context"
	"fmt"
	"time"

	"github.com/linkedgrow/dashboard/internal/models"
	"gorm.io/gorm/clause"
)

func (s *Gorm) GetSetting(ctx context.Context, userID, key string) (string, error) {
	var row models.UserSetting
	err := s.db.WithContext(ctx).Where("user_id = ? AND key = ?", userID, key).Take(&row).Error
	if err != nil {
		return "", notFound(err)
	}
	return row.Value, nil
}

func (s *Gorm) SetSetting(ctx context.Context, userID, key, value string) error {
	row := models.UserSetting{UserID: userID, Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}
