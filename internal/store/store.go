// Package store is the single data-access module. Every read and write of the
// users, password_reset_tokens, auth_identities and user_settings tables goes
// through the typed interfaces below; Gorm is the only implementation.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/linkedgrow/dashboard/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when creating a user whose email already exists.
	ErrEmailTaken = errors.New("email already registered")
)

// OnboardingRecord is the onboarding slice of a user row.
type OnboardingRecord struct {
	Complete  bool
	Role      json.RawMessage
	Discovery json.RawMessage
	Terms     json.RawMessage
	Marketing bool
}

// UsageRecord is the metering slice of a user row.
type UsageRecord struct {
	SubscriptionStatus  string
	MonthlyFeatureUsage int
	UsageResetDate      time.Time
}

type Users interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByStripeCustomer(ctx context.Context, customerID string) (*models.User, error)
	TouchLogin(ctx context.Context, id string, at time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetSubscriptionStatus(ctx context.Context, id, status string) error
	SetStripeCustomerID(ctx context.Context, id, customerID string) error
	DeleteUser(ctx context.Context, id string) error
	ListMarketingRecipients(ctx context.Context) ([]models.User, error)
}

type Onboarding interface {
	EnsureOnboardingColumns(ctx context.Context) error
	HasOnboardingColumns(ctx context.Context) bool
	GetOnboarding(ctx context.Context, userID string) (*OnboardingRecord, error)
	SaveOnboardingRole(ctx context.Context, userID string, data json.RawMessage) error
	SaveOnboardingDiscovery(ctx context.Context, userID string, data json.RawMessage) error
	CompleteOnboarding(ctx context.Context, userID string, terms json.RawMessage, marketing bool) error
}

type Usage interface {
	GetUsage(ctx context.Context, userID string) (*UsageRecord, error)
	// ResetUsage zeroes the counter unless the row was already reset during
	// the calendar month of today.
	ResetUsage(ctx context.Context, userID string, today time.Time) error
	// IncrementUsage adds one to the counter only while it is below limit and
	// reports whether the row changed.
	IncrementUsage(ctx context.Context, userID string, limit int) (bool, error)
}

type ResetTokens interface {
	ReplaceResetToken(ctx context.Context, t *models.PasswordResetToken) error
	FindResetToken(ctx context.Context, email, tokenHash string) (*models.PasswordResetToken, error)
	DeleteResetToken(ctx context.Context, id string) error
	DeleteResetTokensForEmail(ctx context.Context, email string) error
	PurgeExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

type Settings interface {
	GetSetting(ctx context.Context, userID, key string) (string, error)
	SetSetting(ctx context.Context, userID, key, value string) error
}

type Identities interface {
	UpsertIdentity(ctx context.Context, identity *models.AuthIdentity) error
}

// Store is everything the service persists.
type Store interface {
	Users
	Onboarding
	Usage
	ResetTokens
	Settings
	Identities
	Ping(ctx context.Context) error
}

// Gorm implements Store on a gorm connection.
type Gorm struct {
	db *gorm.DB

	mu              sync.Mutex
	onboardingReady bool
}

var _ Store = (*Gorm)(nil)

// New wraps an open gorm connection.
func New(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// DB exposes the connection for migrations and seeding.
func (s *Gorm) DB() *gorm.DB {
	return s.db
}

// Ping checks the underlying connection.
func (s *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
