package models

import (
	"time"

	"gorm.io/datatypes"
)

// Subscription states mirrored from the billing provider.
const (
	SubscriptionFree = "free"
	SubscriptionPro  = "pro"
)

// Roles
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account row. Onboarding and usage metering live on the same
// row so the gates can be answered with a single lookup.
type User struct {
	ID           string  `gorm:"primaryKey;type:varchar(64)"`
	Email        string  `gorm:"uniqueIndex;not null"`
	Name         string  `gorm:"not null;default:''"`
	PasswordHash *string `gorm:"column:password_hash;type:text"`
	Role         string  `gorm:"not null;default:'user'"` // enum: 'user' or 'admin'

	OnboardingComplete  bool `gorm:"not null;default:false"`
	OnboardingRole      datatypes.JSON
	OnboardingDiscovery datatypes.JSON
	OnboardingTerms     datatypes.JSON
	OnboardingMarketing bool `gorm:"not null;default:false"`

	SubscriptionStatus  string    `gorm:"not null;default:'free'"`
	StripeCustomerID    *string   `gorm:"uniqueIndex"`
	MonthlyFeatureUsage int       `gorm:"not null;default:0"`
	UsageResetDate      time.Time `gorm:"type:date"`

	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsPro reports whether the account is on the paid plan.
func (u *User) IsPro() bool {
	return u.SubscriptionStatus == SubscriptionPro
}

// IsAdmin reports whether the account may use admin routes.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
