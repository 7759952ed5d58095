package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/linkedgrow/dashboard/internal/models"
	"gorm.io/gorm"
)

// CreateUser inserts u, filling id, plan, role and reset date defaults.
func (s *Gorm) CreateUser(ctx context.Context, u *models.User) error {
	if err := s.EnsureOnboardingColumns(ctx); err != nil {
		return err
	}

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = models.SubscriptionFree
	}
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.UsageResetDate.IsZero() {
		u.UsageResetDate = truncateDay(time.Now().UTC())
	}

	err := s.db.WithContext(ctx).Create(u).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *Gorm) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Gorm) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).Take(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Gorm) GetUserByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Where("stripe_customer_id = ?", customerID).Take(&u).Error; err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (s *Gorm) TouchLogin(ctx context.Context, id string, at time.Time) error {
	return s.updateUser(ctx, id, map[string]any{"last_login_at": at})
}

func (s *Gorm) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.updateUser(ctx, id, map[string]any{"password_hash": passwordHash})
}

func (s *Gorm) SetSubscriptionStatus(ctx context.Context, id, status string) error {
	return s.updateUser(ctx, id, map[string]any{"subscription_status": status})
}

func (s *Gorm) SetStripeCustomerID(ctx context.Context, id, customerID string) error {
	return s.updateUser(ctx, id, map[string]any{"stripe_customer_id": customerID})
}

// DeleteUser removes the user together with reset tokens, settings and
// provider identities in one transaction.
func (s *Gorm) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.User
		if err := tx.Select("id", "email").Where("id = ?", id).Take(&u).Error; err != nil {
			return notFound(err)
		}
		if err := tx.Where("email = ?", u.Email).Delete(&models.PasswordResetToken{}).Error; err != nil {
			return fmt.Errorf("delete reset tokens: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.UserSetting{}).Error; err != nil {
			return fmt.Errorf("delete settings: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.AuthIdentity{}).Error; err != nil {
			return fmt.Errorf("delete identities: %w", err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.User{}).Error; err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		return nil
	})
}

// ListMarketingRecipients returns users that opted in to marketing email.
func (s *Gorm) ListMarketingRecipients(ctx context.Context) ([]models.User, error) {
	if !s.HasOnboardingColumns(ctx) {
		return nil, nil
	}
	var users []models.User
	err := s.db.WithContext(ctx).
		Select("id", "email", "name").
		Where("onboarding_marketing = ?", true).
		Order("created_at").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list marketing recipients: %w", err)
	}
	return users, nil
}

func (s *Gorm) updateUser(ctx context.Context, id string, values map[string]any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
