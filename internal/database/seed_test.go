package database

import (
	"context"
	"testing"

	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSeedDevDataIsIdempotent(t *testing.T) {
	st := storetest.New(t)
	ctx := context.Background()

	require.NoError(t, SeedDevData(ctx, st, zap.NewNop()))
	require.NoError(t, SeedDevData(ctx, st, zap.NewNop()))

	admin, err := st.GetUserByEmail(ctx, DevAdminEmail)
	require.NoError(t, err)
	assert.True(t, admin.IsAdmin())
	assert.True(t, admin.OnboardingComplete)
	require.NotNil(t, admin.PasswordHash)
	assert.True(t, auth.CheckPassword(*admin.PasswordHash, DevPassword))

	fresh, err := st.GetUserByEmail(ctx, DevNewEmail)
	require.NoError(t, err)
	assert.False(t, fresh.OnboardingComplete)

	recipients, err := st.ListMarketingRecipients(ctx)
	require.NoError(t, err)
	assert.Len(t, recipients, 1)
}

func TestEnsureTimezoneUTC(t *testing.T) {
	dsn, err := ensureTimezoneUTC("postgres://u:p@db:5432/app?sslmode=disable")
	require.NoError(t, err)
	assert.Contains(t, dsn, "TimeZone=UTC")

	dsn, err = ensureTimezoneUTC("postgres://db/app?TimeZone=Europe%2FBerlin")
	require.NoError(t, err)
	assert.Contains(t, dsn, "TimeZone=Europe%2FBerlin")
	assert.Equal(t, "db", hostOf(dsn))
}

func TestInitRequiresURL(t *testing.T) {
	_, err := Init("", nil)
	assert.Error(t, err)
}
