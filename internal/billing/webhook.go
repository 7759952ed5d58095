package billing

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"go.uber.org/zap"
)

const maxWebhookBytes = int64(65536)

// HandleWebhook keeps subscription_status in step with Stripe.
func (s *Service) HandleWebhook(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secret == "" {
			s.log.Warn("stripe webhook secret missing")
			respond.Error(c, http.StatusInternalServerError, "Webhook not configured")
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
		if err != nil {
			respond.BadRequest(c, "Invalid payload")
			return
		}
		event, err := webhook.ConstructEventWithOptions(body, c.GetHeader("Stripe-Signature"), secret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			s.log.Warn("stripe webhook signature failed", zap.Error(err))
			respond.BadRequest(c, "Signature verification failed")
			return
		}

		ctx := c.Request.Context()
		switch event.Type {
		case "checkout.session.completed":
			var sess stripe.CheckoutSession
			if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
				respond.BadRequest(c, "Invalid session payload")
				return
			}
			customerID := ""
			if sess.Customer != nil {
				customerID = sess.Customer.ID
			}
			if customerID == "" {
				respond.BadRequest(c, "Missing customer id")
				return
			}
			// Link the customer first in case checkout created it.
			if sess.ClientReferenceID != "" {
				if err := s.users.SetStripeCustomerID(ctx, sess.ClientReferenceID, customerID); err != nil && !errors.Is(err, store.ErrNotFound) {
					s.log.Warn("link stripe customer failed", zap.Error(err))
				}
			}
			err = s.SyncSubscription(ctx, customerID, true)

		case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
			var sub stripe.Subscription
			if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
				respond.BadRequest(c, "Invalid subscription payload")
				return
			}
			if sub.Customer == nil || sub.Customer.ID == "" {
				respond.BadRequest(c, "Missing customer id")
				return
			}
			active := event.Type != "customer.subscription.deleted" &&
				(sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing)
			err = s.SyncSubscription(ctx, sub.Customer.ID, active)

		default:
			s.log.Debug("unhandled stripe event", zap.String("type", string(event.Type)))
		}

		if errors.Is(err, store.ErrNotFound) {
			// Unknown customers are acknowledged so Stripe stops retrying.
			s.log.Warn("stripe event for unknown customer", zap.String("type", string(event.Type)))
			err = nil
		}
		if err != nil {
			s.log.Error("stripe webhook handling failed", zap.String("type", string(event.Type)), zap.Error(err))
			respond.Internal(c, "Failed to update user", nil)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true})
	}
}
