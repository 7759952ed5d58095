package billing

import (
	"context"
	"fmt"
	"strconv"

	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// Payments is the slice of Stripe the service calls.
type Payments interface {
	CreateCustomer(ctx context.Context, u *models.User) (string, error)
	CheckoutURL(ctx context.Context, customerID, priceID, userID string) (string, error)
	PortalURL(ctx context.Context, customerID string) (string, error)
	ReportUsage(ctx context.Context, eventName, customerID string, value int) error
}

// StripePayments talks to the Stripe API.
type StripePayments struct {
	api       *client.API
	appURL    string
	returnURL string
}

// NewStripePayments returns nil when secretKey is empty.
func NewStripePayments(secretKey, appURL string) Payments {
	if secretKey == "" {
		return nil
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripePayments{
		api:       api,
		appURL:    appURL,
		returnURL: appURL + "/dashboard/billing",
	}
}

func (s *StripePayments) CreateCustomer(ctx context.Context, u *models.User) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(u.Email),
	}
	if u.Name != "" {
		params.Name = stripe.String(u.Name)
	}
	params.Context = ctx
	params.AddMetadata("user_id", u.ID)

	cust, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe create customer: %w", err)
	}
	return cust.ID, nil
}

func (s *StripePayments) CheckoutURL(ctx context.Context, customerID, priceID, userID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.appURL + "/dashboard?checkout=success"),
		CancelURL:  stripe.String(s.appURL + "/dashboard?checkout=cancel"),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session: %w", err)
	}
	return sess.URL, nil
}

func (s *StripePayments) PortalURL(ctx context.Context, customerID string) (string, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(s.returnURL),
	}
	params.Context = ctx

	sess, err := s.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe portal session: %w", err)
	}
	return sess.URL, nil
}

func (s *StripePayments) ReportUsage(ctx context.Context, eventName, customerID string, value int) error {
	params := &stripe.BillingMeterEventParams{
		EventName: stripe.String(eventName),
		Payload: map[string]string{
			"stripe_customer_id": customerID,
			"value":              strconv.Itoa(value),
		},
	}
	params.Context = ctx

	if _, err := s.api.BillingMeterEvents.New(params); err != nil {
		return fmt.Errorf("stripe meter event: %w", err)
	}
	return nil
}
