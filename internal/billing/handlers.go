package billing

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

type featureRequest struct {
	CustomerID string `json:"customer_id"`
	FeatureID  string `json:"feature_id"`
	Value      *int   `json:"value"`
}

type productRequest struct {
	CustomerID string `json:"customer_id"`
	ProductID  string `json:"product_id"`
}

// owner validates customer_id against the session. It writes the response
// and returns false when the request must stop.
func owner(c *gin.Context, customerID string) bool {
	if customerID == "" {
		respond.BadRequest(c, "customer_id is required")
		return false
	}
	if err := auth.EnsureOwner(auth.CurrentSession(c), customerID); err != nil {
		respond.Unauthenticated(c)
		return false
	}
	return true
}

func (s *Service) HandleCheckFeature(c *gin.Context) {
	var req featureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if !owner(c, req.CustomerID) {
		return
	}
	if req.FeatureID == "" {
		respond.BadRequest(c, "feature_id is required")
		return
	}

	check, err := s.CheckFeature(c.Request.Context(), req.CustomerID, req.FeatureID)
	if err != nil {
		s.fail(c, "Failed to check feature", err)
		return
	}
	respond.OK(c, gin.H{"allowed": check.Allowed, "data": check})
}

func (s *Service) HandleTrackUsage(c *gin.Context) {
	var req featureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if !owner(c, req.CustomerID) {
		return
	}
	if req.FeatureID == "" {
		respond.BadRequest(c, "feature_id is required")
		return
	}
	value := 1
	if req.Value != nil {
		value = *req.Value
	}

	info, err := s.TrackUsage(c.Request.Context(), req.CustomerID, req.FeatureID, value)
	if err != nil {
		s.fail(c, "Failed to track usage", err)
		return
	}
	respond.OK(c, gin.H{"usage": info})
}

func (s *Service) HandleCheckout(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if !owner(c, req.CustomerID) {
		return
	}
	if req.ProductID == "" {
		respond.BadRequest(c, "product_id is required")
		return
	}

	url, err := s.Checkout(c.Request.Context(), req.CustomerID, req.ProductID)
	if err != nil {
		s.fail(c, "Checkout failed", err)
		return
	}
	respond.OK(c, gin.H{"checkout_url": url})
}

func (s *Service) HandleAttach(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if !owner(c, req.CustomerID) {
		return
	}
	if req.ProductID == "" {
		respond.BadRequest(c, "product_id is required")
		return
	}

	res, err := s.Attach(c.Request.Context(), req.CustomerID, req.ProductID)
	if err != nil {
		s.fail(c, "Attach failed", err)
		return
	}
	body := gin.H{"data": res}
	if res.CheckoutURL != "" {
		body["checkout_url"] = res.CheckoutURL
	}
	respond.OK(c, body)
}

func (s *Service) HandleCustomer(c *gin.Context) {
	customerID := c.Query("customer_id")
	if !owner(c, customerID) {
		return
	}

	view, err := s.Customer(c.Request.Context(), customerID)
	if err != nil {
		s.fail(c, "Failed to load customer", err)
		return
	}
	respond.OK(c, gin.H{"customer": view})
}

func (s *Service) HandlePortal(c *gin.Context) {
	var req struct {
		CustomerID string `json:"customer_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if !owner(c, req.CustomerID) {
		return
	}

	url, err := s.Portal(c.Request.Context(), req.CustomerID)
	if err != nil {
		s.fail(c, "Failed to open billing portal", err)
		return
	}
	respond.OK(c, gin.H{"url": url})
}

func (s *Service) fail(c *gin.Context, message string, err error) {
	var quota *QuotaError
	switch {
	case errors.As(err, &quota):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"success":         false,
			"error":           "Usage limit exceeded",
			"message":         fmt.Sprintf("Only %d of your %d free uses are left this month. Upgrade to Pro for unlimited access.", quota.Usage.Remaining, quota.Usage.Limit),
			"usageInfo":       quota.Usage,
			"applied":         quota.Applied,
			"requiresUpgrade": true,
		})
	case errors.Is(err, ErrUnknownProduct), errors.Is(err, ErrUnknownFeature), errors.Is(err, ErrInvalidValue):
		respond.BadRequest(c, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respond.Unauthenticated(c)
	case errors.Is(err, ErrNotConfigured):
		respond.Error(c, http.StatusInternalServerError, "Billing is not configured")
	default:
		s.log.Error(message, zap.String("user_id", auth.UserID(c)), zap.Error(err))
		respond.Internal(c, message, err)
	}
}
