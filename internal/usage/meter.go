// Package usage meters free-tier feature invocations per calendar month.
// Pro accounts are never metered.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

// DefaultLimit is the number of metered calls a free account gets each month.
const DefaultLimit = 5

// Unlimited is reported as limit and remaining for pro accounts.
const Unlimited = -1

// ErrQuotaExceeded is reported when a free account has no uses left this month.
var ErrQuotaExceeded = errors.New("monthly usage limit reached")

// Info is a point-in-time view of a user's quota.
type Info struct {
	CurrentUsage  int  `json:"currentUsage"`
	Limit         int  `json:"limit"`
	Remaining     int  `json:"remaining"`
	CanUseFeature bool `json:"canUseFeature"`
	IsProUser     bool `json:"isProUser"`
}

type Meter struct {
	store store.Usage
	limit int
	now   func() time.Time
	log   *zap.Logger
}

// NewMeter returns a meter enforcing limit calls per month; limit <= 0 means DefaultLimit.
func NewMeter(s store.Usage, limit int, log *zap.Logger) *Meter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Meter{store: s, limit: limit, now: time.Now, log: log}
}

// SetClock replaces the time source.
func (m *Meter) SetClock(now func() time.Time) {
	m.now = now
}

// Check returns the user's quota, persisting the monthly reset first when
// the stored reset date falls in another calendar month.
func (m *Meter) Check(ctx context.Context, userID string) (*Info, error) {
	rec, err := m.store.GetUsage(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check usage: %w", err)
	}
	if rec.SubscriptionStatus == models.SubscriptionPro {
		return proInfo(), nil
	}

	now := m.now().UTC()
	used := rec.MonthlyFeatureUsage
	if !sameMonth(rec.UsageResetDate, now) {
		if err := m.store.ResetUsage(ctx, userID, now); err != nil {
			return nil, fmt.Errorf("check usage: %w", err)
		}
		m.log.Info("monthly usage reset",
			zap.String("user_id", userID),
			zap.Int("previous_usage", used),
		)
		used = 0
	}
	return m.info(used), nil
}

// Increment consumes one unit and returns the post-increment view. Pro
// accounts and exhausted quotas are returned unchanged.
func (m *Meter) Increment(ctx context.Context, userID string) (*Info, error) {
	info, err := m.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if info.IsProUser || !info.CanUseFeature {
		return info, nil
	}

	changed, err := m.store.IncrementUsage(ctx, userID, m.limit)
	if err != nil {
		return nil, err
	}
	if !changed {
		// A concurrent request took the last unit.
		return m.Check(ctx, userID)
	}
	return m.info(info.CurrentUsage + 1), nil
}

func (m *Meter) info(used int) *Info {
	return &Info{
		CurrentUsage:  used,
		Limit:         m.limit,
		Remaining:     max(0, m.limit-used),
		CanUseFeature: used < m.limit,
	}
}

func proInfo() *Info {
	return &Info{
		CurrentUsage:  0,
		Limit:         Unlimited,
		Remaining:     Unlimited,
		CanUseFeature: true,
		IsProUser:     true,
	}
}

func sameMonth(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	a = a.UTC()
	return a.Year() == b.Year() && a.Month() == b.Month()
}
