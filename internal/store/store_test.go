package store_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func createUser(t *testing.T, s *store.Gorm, email string) *models.User {
	t.Helper()
	u := &models.User{Email: email, Name: "Test"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func TestCreateUserDefaults(t *testing.T) {
	s := storetest.New(t)
	u := createUser(t, s, "a@x.com")

	got, err := s.GetUser(context.Background(), u.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, models.SubscriptionFree, got.SubscriptionStatus)
	assert.Equal(t, models.RoleUser, got.Role)
	assert.False(t, got.OnboardingComplete)
	assert.Equal(t, 0, got.MonthlyFeatureUsage)
	assert.False(t, got.UsageResetDate.IsZero())
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s := storetest.New(t)
	createUser(t, s, "a@x.com")

	err := s.CreateUser(context.Background(), &models.User{Email: "a@x.com"})
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestGetUserNotFound(t *testing.T) {
	s := storetest.New(t)

	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetUserByEmail(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, s.SetSubscriptionStatus(context.Background(), "missing", models.SubscriptionPro), store.ErrNotFound)
}

func TestStripeCustomerLookup(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := createUser(t, s, "a@x.com")

	require.NoError(t, s.SetStripeCustomerID(ctx, u.ID, "cus_123"))
	got, err := s.GetUserByStripeCustomer(ctx, "cus_123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestIncrementUsageStopsAtLimit(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := createUser(t, s, "a@x.com")

	for i := 0; i < 2; i++ {
		changed, err := s.IncrementUsage(ctx, u.ID, 2)
		require.NoError(t, err)
		assert.True(t, changed)
	}
	changed, err := s.IncrementUsage(ctx, u.ID, 2)
	require.NoError(t, err)
	assert.False(t, changed)

	rec, err := s.GetUsage(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.MonthlyFeatureUsage)
}

func TestResetUsageOnlyOutsideCurrentMonth(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := &models.User{Email: "a@x.com", UsageResetDate: time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, s.CreateUser(ctx, u))
	_, err := s.IncrementUsage(ctx, u.ID, 5)
	require.NoError(t, err)

	today := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	require.NoError(t, s.ResetUsage(ctx, u.ID, today))

	rec, err := s.GetUsage(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.MonthlyFeatureUsage)
	assert.Equal(t, time.October, rec.UsageResetDate.Month())
	assert.Equal(t, 19, rec.UsageResetDate.Day())

	// A second reset in the same month must not wipe new usage.
	_, err = s.IncrementUsage(ctx, u.ID, 5)
	require.NoError(t, err)
	require.NoError(t, s.ResetUsage(ctx, u.ID, today.Add(time.Hour)))
	rec, err = s.GetUsage(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.MonthlyFeatureUsage)
}

func TestReplaceResetTokenKeepsOnePerEmail(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	exp := time.Now().Add(time.Hour)

	require.NoError(t, s.ReplaceResetToken(ctx, &models.PasswordResetToken{Email: "a@x.com", TokenHash: "h1", ExpiresAt: exp}))
	require.NoError(t, s.ReplaceResetToken(ctx, &models.PasswordResetToken{Email: "a@x.com", TokenHash: "h2", ExpiresAt: exp}))

	_, err := s.FindResetToken(ctx, "a@x.com", "h1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	tok, err := s.FindResetToken(ctx, "a@x.com", "h2")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", tok.Email)
}

func TestResetTokenEmailIsUnique(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	exp := time.Now().Add(time.Hour)

	first := &models.PasswordResetToken{Email: "a@x.com", TokenHash: "h1", ExpiresAt: exp}
	require.NoError(t, s.ReplaceResetToken(ctx, first))
	second := &models.PasswordResetToken{Email: "a@x.com", TokenHash: "h2", ExpiresAt: exp}
	require.NoError(t, s.ReplaceResetToken(ctx, second))

	var n int64
	require.NoError(t, s.DB().Model(&models.PasswordResetToken{}).Where("email = ?", "a@x.com").Count(&n).Error)
	assert.EqualValues(t, 1, n)

	tok, err := s.FindResetToken(ctx, "a@x.com", "h2")
	require.NoError(t, err)
	assert.Equal(t, second.ID, tok.ID)

	// A plain insert racing past the upsert is refused by the index.
	err = s.DB().Create(&models.PasswordResetToken{ID: "dup", Email: "a@x.com", TokenHash: "h3", ExpiresAt: exp}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
}

func TestPurgeExpiredResetTokens(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	now := time.Now().UTC()

	require.NoError(t, s.ReplaceResetToken(ctx, &models.PasswordResetToken{Email: "old@x.com", TokenHash: "h1", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, s.ReplaceResetToken(ctx, &models.PasswordResetToken{Email: "new@x.com", TokenHash: "h2", ExpiresAt: now.Add(time.Hour)}))

	n, err := s.PurgeExpiredResetTokens(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.FindResetToken(ctx, "new@x.com", "h2")
	assert.NoError(t, err)
}

func TestSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := createUser(t, s, "a@x.com")

	_, err := s.GetSetting(ctx, u.ID, models.SettingLinkedInUsername)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.SetSetting(ctx, u.ID, models.SettingLinkedInUsername, "first"))
	require.NoError(t, s.SetSetting(ctx, u.ID, models.SettingLinkedInUsername, "second"))

	v, err := s.GetSetting(ctx, u.ID, models.SettingLinkedInUsername)
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	u := createUser(t, s, "a@x.com")
	require.NoError(t, s.SetSetting(ctx, u.ID, models.SettingLinkedInUsername, "me"))
	require.NoError(t, s.ReplaceResetToken(ctx, &models.PasswordResetToken{Email: u.Email, TokenHash: "h", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.UpsertIdentity(ctx, &models.AuthIdentity{UserID: u.ID, Provider: "google", ProviderUserID: "g-1"}))

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	_, err := s.GetUser(ctx, u.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.GetSetting(ctx, u.ID, models.SettingLinkedInUsername)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FindResetToken(ctx, u.Email, "h")
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), store.ErrNotFound)
}

func TestLegacyTableGetsOnboardingColumns(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewLegacy(t)
	require.NoError(t, s.DB().Exec(`INSERT INTO users (id, email) VALUES ('u1', 'legacy@x.com')`).Error)

	assert.False(t, s.HasOnboardingColumns(ctx))
	rec, err := s.GetOnboarding(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, rec.Complete)

	_, err = s.GetOnboarding(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound, "unknown users are not treated as incomplete")
	assert.False(t, s.HasOnboardingColumns(ctx), "reads never add columns")

	require.NoError(t, s.SaveOnboardingRole(ctx, "u1", json.RawMessage(`{"role":"founder"}`)))
	assert.True(t, s.HasOnboardingColumns(ctx))

	rec, err = s.GetOnboarding(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"founder"}`, string(rec.Role))
	assert.False(t, rec.Complete)
}

func TestListMarketingRecipients(t *testing.T) {
	ctx := context.Background()
	s := storetest.New(t)
	yes := createUser(t, s, "yes@x.com")
	createUser(t, s, "no@x.com")
	require.NoError(t, s.CompleteOnboarding(ctx, yes.ID, json.RawMessage(`{"accepted":true}`), true))

	users, err := s.ListMarketingRecipients(ctx)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "yes@x.com", users[0].Email)
}
