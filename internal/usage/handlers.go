package usage

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/logger"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

// HandleGetUsage returns the caller's quota.
func HandleGetUsage(m *Meter) gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := m.Check(c.Request.Context(), auth.UserID(c))
		if errors.Is(err, store.ErrNotFound) {
			respond.Unauthenticated(c)
			return
		}
		if err != nil {
			logger.Get().Error("usage check failed", zap.String("user_id", auth.UserID(c)), zap.Error(err))
			respond.Internal(c, "Failed to load usage", nil)
			return
		}
		respond.OK(c, gin.H{"usage": info})
	}
}
