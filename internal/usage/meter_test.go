package usage

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var october = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

func newMeter(t *testing.T) (*Meter, *store.Gorm) {
	t.Helper()
	s := storetest.New(t)
	m := NewMeter(s, DefaultLimit, nil)
	m.SetClock(func() time.Time { return october })
	return m, s
}

func seedUser(t *testing.T, s *store.Gorm, status string, used int, resetDate time.Time) string {
	t.Helper()
	u := &models.User{Email: "u@x.com", SubscriptionStatus: status, UsageResetDate: resetDate}
	require.NoError(t, s.CreateUser(context.Background(), u))
	if used > 0 {
		require.NoError(t, s.DB().Model(&models.User{}).Where("id = ?", u.ID).Update("monthly_feature_usage", used).Error)
	}
	return u.ID
}

func TestCheckFreshUser(t *testing.T) {
	m, s := newMeter(t)
	id := seedUser(t, s, models.SubscriptionFree, 0, october)

	info, err := m.Check(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, Info{CurrentUsage: 0, Limit: 5, Remaining: 5, CanUseFeature: true}, *info)
}

func TestCheckUnknownUser(t *testing.T) {
	m, _ := newMeter(t)

	_, err := m.Check(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestMonthlyResetIsPersisted(t *testing.T) {
	for _, prev := range []int{1, 5, 17} {
		m, s := newMeter(t)
		id := seedUser(t, s, models.SubscriptionFree, prev, time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC))

		info, err := m.Check(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 0, info.CurrentUsage)
		assert.True(t, info.CanUseFeature)

		rec, err := s.GetUsage(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 0, rec.MonthlyFeatureUsage)
		assert.Equal(t, time.October, rec.UsageResetDate.Month())
		assert.Equal(t, 2026, rec.UsageResetDate.Year())
	}
}

func TestSameMonthLastYearStillResets(t *testing.T) {
	m, s := newMeter(t)
	id := seedUser(t, s, models.SubscriptionFree, 5, time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC))

	info, err := m.Check(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 0, info.CurrentUsage)
}

func TestQuotaBoundary(t *testing.T) {
	m, s := newMeter(t)
	ctx := context.Background()
	id := seedUser(t, s, models.SubscriptionFree, 4, october)

	info, err := m.Check(ctx, id)
	require.NoError(t, err)
	assert.True(t, info.CanUseFeature)
	assert.Equal(t, 1, info.Remaining)

	info, err = m.Increment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, info.CurrentUsage)
	assert.Equal(t, 0, info.Remaining)
	assert.False(t, info.CanUseFeature)

	info, err = m.Increment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, info.CurrentUsage)

	rec, err := s.GetUsage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.MonthlyFeatureUsage)
}

func TestProBypass(t *testing.T) {
	m, s := newMeter(t)
	ctx := context.Background()
	id := seedUser(t, s, models.SubscriptionPro, 3, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for i := 0; i < 3; i++ {
		info, err := m.Increment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, Info{CurrentUsage: 0, Limit: Unlimited, Remaining: Unlimited, CanUseFeature: true, IsProUser: true}, *info)
	}

	rec, err := s.GetUsage(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 3, rec.MonthlyFeatureUsage, "pro usage is never touched")
	assert.Equal(t, time.January, rec.UsageResetDate.Month(), "pro reset date is never touched")
}

func TestConcurrentIncrementsNeverExceedLimit(t *testing.T) {
	m, s := newMeter(t)
	ctx := context.Background()
	id := seedUser(t, s, models.SubscriptionFree, 0, october)

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Increment(ctx, id)
		}()
	}
	wg.Wait()

	rec, err := s.GetUsage(ctx, id)
	require.NoError(t, err)
	assert.LessOrEqual(t, rec.MonthlyFeatureUsage, DefaultLimit)
}

func TestHandleGetUsage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m, s := newMeter(t)
	id := seedUser(t, s, models.SubscriptionFree, 2, october)

	r := gin.New()
	r.GET("/usage", func(c *gin.Context) {
		c.Set(auth.ContextKeyUserID, c.GetHeader("X-Test-User"))
	}, HandleGetUsage(m))

	req := httptest.NewRequest(http.MethodGet, "/usage", nil)
	req.Header.Set("X-Test-User", id)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Success bool `json:"success"`
		Usage   Info `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Usage.CurrentUsage)
	assert.Equal(t, 3, body.Usage.Remaining)

	req = httptest.NewRequest(http.MethodGet, "/usage", nil)
	req.Header.Set("X-Test-User", "ghost")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
