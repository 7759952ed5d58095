package store

import (
	"context"
	"fmt"
	"time"

	"github.com/linkedgrow/dashboard/internal/models"
	"gorm.io/gorm"
)

func (s *Gorm) GetUsage(ctx context.Context, userID string) (*UsageRecord, error) {
	var u models.User
	err := s.db.WithContext(ctx).
		Select("id", "subscription_status", "monthly_feature_usage", "usage_reset_date").
		Where("id = ?", userID).
		Take(&u).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &UsageRecord{
		SubscriptionStatus:  u.SubscriptionStatus,
		MonthlyFeatureUsage: u.MonthlyFeatureUsage,
		UsageResetDate:      u.UsageResetDate,
	}, nil
}

func (s *Gorm) ResetUsage(ctx context.Context, userID string, today time.Time) error {
	today = truncateDay(today.UTC())
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	nextMonth := monthStart.AddDate(0, 1, 0)

	// Concurrent callers in a new month race here; only rows still dated
	// outside the current month are touched.
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Where("usage_reset_date IS NULL OR usage_reset_date < ? OR usage_reset_date >= ?", monthStart, nextMonth).
		Updates(map[string]any{
			"monthly_feature_usage": 0,
			"usage_reset_date":      today,
		})
	if res.Error != nil {
		return fmt.Errorf("reset usage: %w", res.Error)
	}
	return nil
}

func (s *Gorm) IncrementUsage(ctx context.Context, userID string, limit int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND monthly_feature_usage < ?", userID, limit).
		UpdateColumn("monthly_feature_usage", gorm.Expr("monthly_feature_usage + ?", 1))
	if res.Error != nil {
		return false, fmt.Errorf("increment usage: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
