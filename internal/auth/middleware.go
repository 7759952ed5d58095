package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/logger"
	"github.com/linkedgrow/dashboard/internal/respond"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

// LoginPath is where unauthenticated page requests are sent.
const LoginPath = "/login"

// RequireSession guards API routes: no session is a 401 JSON response.
func RequireSession(s SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.Resolve(c)
		if err != nil {
			respond.Unauthenticated(c)
			return
		}
		setSession(c, sess)
		c.Next()
	}
}

// RequirePageSession guards page routes: no session redirects to the login page.
func RequirePageSession(s SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := s.Resolve(c)
		if err != nil {
			if c.GetHeader("HX-Request") == "true" {
				c.Header("HX-Redirect", LoginPath)
				c.AbortWithStatus(http.StatusUnauthorized)
			} else {
				c.Redirect(http.StatusFound, LoginPath)
				c.Abort()
			}
			return
		}
		setSession(c, sess)
		c.Next()
	}
}

// RequireAdmin must run after RequireSession. The role is read from the
// database on every request, never from the session.
func RequireAdmin(users store.Users) gin.HandlerFunc {
	return func(c *gin.Context) {
		u, err := users.GetUser(c.Request.Context(), UserID(c))
		if errors.Is(err, store.ErrNotFound) {
			respond.Unauthenticated(c)
			return
		}
		if err != nil {
			logger.Get().Error("admin check failed", zap.Error(err))
			respond.Internal(c, "Failed to verify permissions", nil)
			return
		}
		if !u.IsAdmin() {
			respond.Error(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}

// CurrentSession returns the session set by the middleware, or nil.
func CurrentSession(c *gin.Context) *Session {
	v, ok := c.Get(ContextKeySession)
	if !ok {
		return nil
	}
	sess, _ := v.(*Session)
	return sess
}

// UserID returns the session user id, or "".
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func setSession(c *gin.Context, sess *Session) {
	c.Set(ContextKeySession, sess)
	c.Set(ContextKeyUserID, sess.UserID)
}
