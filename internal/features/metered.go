package features

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/usage"
	"go.uber.org/zap"
)

// Fallback reasons reported to the client.
const (
	reasonNotConfigured = "not_configured"
	reasonUpstream      = "upstream_error"
)

// outcome is what a tool produced. Fallback results are labelled in the
// response and do not consume quota.
type outcome struct {
	data     any
	fallback bool
	reason   string
}

func result(data any) *outcome {
	return &outcome{data: data}
}

func fallback(data any, reason string) *outcome {
	return &outcome{data: data, fallback: true, reason: reason}
}

// inputError is a user-correctable request problem.
type inputError struct {
	msg string
}

func (e *inputError) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &inputError{msg: fmt.Sprintf(format, args...)}
}

type runFunc func(c *gin.Context, userID string) (*outcome, error)

// metered runs a tool under the quota contract: the quota is checked
// before the tool runs and charged only after it succeeds with a real
// (non-fallback) result. A failed quota check denies the call.
func (s *Service) metered(feature string, run runFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := auth.UserID(c)
		if userID == "" {
			respond.Unauthenticated(c)
			return
		}
		ctx := c.Request.Context()

		info, err := s.meter.Check(ctx, userID)
		if errors.Is(err, store.ErrNotFound) {
			respond.Unauthenticated(c)
			return
		}
		if err != nil {
			s.log.Error("usage check failed",
				zap.String("feature", feature),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			respond.Internal(c, "Failed to check usage", nil)
			return
		}
		if !info.CanUseFeature {
			s.log.Info("feature denied", zap.String("feature", feature), zap.String("user_id", userID), zap.Error(usage.ErrQuotaExceeded))
			quotaExceeded(c, info)
			return
		}

		out, err := run(c, userID)
		var inErr *inputError
		switch {
		case errors.As(err, &inErr):
			respond.BadRequest(c, inErr.msg)
			return
		case err != nil:
			s.log.Error("feature failed",
				zap.String("feature", feature),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			respond.Internal(c, "Request failed", err)
			return
		}

		if out.fallback {
			respond.OK(c, gin.H{
				"data":           out.data,
				"fallback":       true,
				"fallbackReason": out.reason,
				"usage":          info,
			})
			return
		}

		after, err := s.meter.Increment(ctx, userID)
		if err != nil {
			// The work is done; report it and leave the counter as is.
			s.log.Error("usage increment failed",
				zap.String("feature", feature),
				zap.String("user_id", userID),
				zap.Error(err),
			)
			after = info
		}
		respond.OK(c, gin.H{"data": out.data, "usage": after})
	}
}

func quotaExceeded(c *gin.Context, info *usage.Info) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success":         false,
		"error":           "Usage limit exceeded",
		"message":         fmt.Sprintf("You've used all %d free uses this month. Upgrade to Pro for unlimited access.", info.Limit),
		"usageInfo":       info,
		"requiresUpgrade": true,
	})
}
