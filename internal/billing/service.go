// Package billing bridges plan checkout, entitlement checks and usage
// tracking to Stripe. The local usage meter stays the source of truth for
// the free-tier quota; Stripe owns subscriptions.
package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/usage"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured  = errors.New("billing is not configured")
	ErrUnknownProduct = errors.New("unknown product")
	ErrUnknownFeature = errors.New("unknown feature")
	ErrInvalidValue   = errors.New("value must be a positive integer")
)

// FeatureCheck is the entitlement answer for one feature.
type FeatureCheck struct {
	FeatureID       string      `json:"feature_id"`
	Allowed         bool        `json:"allowed"`
	RequiresUpgrade bool        `json:"requiresUpgrade"`
	Usage           *usage.Info `json:"usage,omitempty"`
}

// AttachResult reports whether a product was attached directly or needs checkout.
type AttachResult struct {
	ProductID   string `json:"product_id"`
	Attached    bool   `json:"attached"`
	CheckoutURL string `json:"checkout_url,omitempty"`
}

// CustomerView is what the dashboard shows about the billing account.
type CustomerView struct {
	ID                 string      `json:"id"`
	Email              string      `json:"email"`
	Name               string      `json:"name"`
	SubscriptionStatus string      `json:"subscription_status"`
	HasBillingAccount  bool        `json:"has_billing_account"`
	Products           []Product   `json:"products"`
	Features           []Feature   `json:"features"`
	Usage              *usage.Info `json:"usage"`
}

type Service struct {
	users    store.Users
	meter    *usage.Meter
	catalog  *Catalog
	payments Payments
	log      *zap.Logger
}

// NewService wires the bridge. payments may be nil, in which case
// checkout, attach and portal fail with ErrNotConfigured while feature
// checks and tracking keep working.
func NewService(users store.Users, meter *usage.Meter, catalog *Catalog, payments Payments, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{users: users, meter: meter, catalog: catalog, payments: payments, log: log}
}

func (s *Service) Configured() bool {
	return s.payments != nil
}

// Checkout returns a hosted checkout URL for productID.
func (s *Service) Checkout(ctx context.Context, userID, productID string) (string, error) {
	if s.payments == nil {
		return "", ErrNotConfigured
	}
	product, ok := s.catalog.Product(productID)
	if !ok {
		return "", ErrUnknownProduct
	}
	if product.PriceID == "" {
		return "", fmt.Errorf("%w: no price for product %s", ErrNotConfigured, productID)
	}

	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return "", err
	}
	url, err := s.payments.CheckoutURL(ctx, customerID, product.PriceID, u.ID)
	if err != nil {
		return "", err
	}
	s.log.Info("checkout session created", zap.String("user_id", u.ID), zap.String("product_id", productID))
	return url, nil
}

// Attach grants productID. A subscribed user is reported as attached;
// anyone else gets a checkout URL.
func (s *Service) Attach(ctx context.Context, userID, productID string) (*AttachResult, error) {
	if _, ok := s.catalog.Product(productID); !ok {
		return nil, ErrUnknownProduct
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.IsPro() {
		return &AttachResult{ProductID: productID, Attached: true}, nil
	}

	url, err := s.Checkout(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	return &AttachResult{ProductID: productID, CheckoutURL: url}, nil
}

// CheckFeature answers whether userID may use featureID now. It never
// consumes quota.
func (s *Service) CheckFeature(ctx context.Context, userID, featureID string) (*FeatureCheck, error) {
	feature, ok := s.catalog.Feature(featureID)
	if !ok {
		return nil, ErrUnknownFeature
	}

	info, err := s.meter.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	check := &FeatureCheck{FeatureID: featureID, Usage: info}
	switch {
	case feature.ProOnly:
		check.Allowed = info.IsProUser
	case feature.Metered:
		check.Allowed = info.CanUseFeature
	default:
		check.Allowed = true
	}
	check.RequiresUpgrade = !check.Allowed
	return check, nil
}

// QuotaError reports a tracking request that did not fit in the free quota.
// Applied units were recorded before the quota ran out.
type QuotaError struct {
	Requested int
	Applied   int
	Usage     *usage.Info
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s: recorded %d of %d", usage.ErrQuotaExceeded, e.Applied, e.Requested)
}

func (e *QuotaError) Unwrap() error { return usage.ErrQuotaExceeded }

// TrackUsage records value uses of a metered feature. Free accounts count
// against the monthly quota and a value larger than what remains is refused
// with a QuotaError. Pro accounts are forwarded to the Stripe meter.
func (s *Service) TrackUsage(ctx context.Context, userID, featureID string, value int) (*usage.Info, error) {
	feature, ok := s.catalog.Feature(featureID)
	if !ok {
		return nil, ErrUnknownFeature
	}
	if value <= 0 {
		return nil, ErrInvalidValue
	}

	info, err := s.meter.Check(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !feature.Metered {
		return info, nil
	}
	if info.IsProUser {
		s.reportMeter(ctx, userID, feature, value)
		return info, nil
	}
	if value > info.Remaining {
		return nil, &QuotaError{Requested: value, Usage: info}
	}

	for applied := 0; applied < value; applied++ {
		next, err := s.meter.Increment(ctx, userID)
		if err != nil {
			return nil, err
		}
		if next.IsProUser {
			return next, nil
		}
		if next.CurrentUsage <= info.CurrentUsage {
			// A concurrent request took the remaining units.
			return nil, &QuotaError{Requested: value, Applied: applied, Usage: next}
		}
		info = next
	}
	return info, nil
}

// Customer returns the billing view of userID.
func (s *Service) Customer(ctx context.Context, userID string) (*CustomerView, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, err := s.meter.Check(ctx, userID)
	if err != nil {
		return nil, err
	}

	view := &CustomerView{
		ID:                 u.ID,
		Email:              u.Email,
		Name:               u.Name,
		SubscriptionStatus: u.SubscriptionStatus,
		HasBillingAccount:  u.StripeCustomerID != nil,
		Products:           []Product{},
		Features:           s.catalog.Features,
		Usage:              info,
	}
	for _, p := range s.catalog.Products {
		if p.Plan == u.SubscriptionStatus {
			view.Products = append(view.Products, p)
		}
	}
	return view, nil
}

// Portal returns a billing portal URL for a user with a Stripe customer.
func (s *Service) Portal(ctx context.Context, userID string) (string, error) {
	if s.payments == nil {
		return "", ErrNotConfigured
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	customerID, err := s.ensureCustomer(ctx, u)
	if err != nil {
		return "", err
	}
	return s.payments.PortalURL(ctx, customerID)
}

func (s *Service) ensureCustomer(ctx context.Context, u *models.User) (string, error) {
	if u.StripeCustomerID != nil && *u.StripeCustomerID != "" {
		return *u.StripeCustomerID, nil
	}
	customerID, err := s.payments.CreateCustomer(ctx, u)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, u.ID, customerID); err != nil {
		return "", fmt.Errorf("save stripe customer: %w", err)
	}
	u.StripeCustomerID = &customerID
	return customerID, nil
}

func (s *Service) reportMeter(ctx context.Context, userID string, feature *Feature, value int) {
	if s.payments == nil || feature.MeterEvent == "" {
		return
	}
	u, err := s.users.GetUser(ctx, userID)
	if err != nil || u.StripeCustomerID == nil {
		return
	}
	if err := s.payments.ReportUsage(ctx, feature.MeterEvent, *u.StripeCustomerID, value); err != nil {
		s.log.Warn("meter event failed",
			zap.String("user_id", userID),
			zap.String("feature_id", feature.ID),
			zap.Error(err),
		)
	}
}

// SyncSubscription mirrors a Stripe subscription status onto the user.
func (s *Service) SyncSubscription(ctx context.Context, customerID string, active bool) error {
	u, err := s.users.GetUserByStripeCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	status := models.SubscriptionFree
	if active {
		status = models.SubscriptionPro
	}
	if err := s.users.SetSubscriptionStatus(ctx, u.ID, status); err != nil {
		return err
	}
	s.log.Info("subscription synced", zap.String("user_id", u.ID), zap.String("status", status))
	return nil
}
