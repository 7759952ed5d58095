package onboarding

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

// HandleGetStatus returns {isComplete, data} for the caller.
func (g *Gate) HandleGetStatus(c *gin.Context) {
	status, err := g.GetStatus(c.Request.Context(), auth.UserID(c))
	if errors.Is(err, store.ErrNotFound) {
		respond.Unauthenticated(c)
		return
	}
	if err != nil {
		g.log.Error("onboarding status failed", zap.String("user_id", auth.UserID(c)), zap.Error(err))
		respond.Internal(c, "Failed to load onboarding status", nil)
		return
	}

	respond.OK(c, gin.H{
		"isComplete": status.IsComplete,
		"data": gin.H{
			"role":      status.Role,
			"discovery": status.Discovery,
			"terms":     status.Terms,
			"marketing": status.Marketing,
		},
	})
}

// HandleSaveStep persists one step from {step, data}.
func (g *Gate) HandleSaveStep(c *gin.Context) {
	var req struct {
		Step string          `json:"step"`
		Data json.RawMessage `json:"data"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.BadRequest(c, "Invalid request body")
		return
	}
	if req.Step == "" {
		respond.BadRequest(c, "step is required")
		return
	}

	err := g.SaveStep(c.Request.Context(), auth.UserID(c), req.Step, req.Data)
	switch {
	case err == nil:
		respond.OK(c, nil)
	case errors.Is(err, ErrInvalidStep):
		respond.BadRequest(c, "Invalid step")
	case errors.Is(err, ErrMissingTerms):
		respond.BadRequest(c, "terms is required to complete onboarding")
	case errors.Is(err, ErrMissingData):
		respond.BadRequest(c, "data is required for step "+req.Step)
	case errors.Is(err, store.ErrNotFound):
		respond.Unauthenticated(c)
	default:
		g.log.Error("onboarding save failed",
			zap.String("user_id", auth.UserID(c)),
			zap.String("step", req.Step),
			zap.Error(err),
		)
		respond.Internal(c, "Failed to save onboarding step", nil)
	}
}

// RequireComplete is the page gate: it must run after auth.RequirePageSession
// and redirects to the first unfinished step. It always reads the database.
func (g *Gate) RequireComplete() gin.HandlerFunc {
	return func(c *gin.Context) {
		status, err := g.GetStatus(c.Request.Context(), auth.UserID(c))
		if errors.Is(err, store.ErrNotFound) {
			redirect(c, auth.LoginPath)
			return
		}
		if err != nil {
			g.log.Error("onboarding gate failed", zap.String("user_id", auth.UserID(c)), zap.Error(err))
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}
		if next := NextStep(status); next != "" {
			redirect(c, next)
			return
		}
		c.Next()
	}
}

func redirect(c *gin.Context, path string) {
	if c.GetHeader("HX-Request") == "true" {
		c.Header("HX-Redirect", path)
		c.AbortWithStatus(http.StatusOK)
		return
	}
	c.Redirect(http.StatusFound, path)
	c.Abort()
}
