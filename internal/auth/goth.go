package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/google"
	"go.uber.org/zap"
)

// InitProviders registers the Google provider with goth. It reports whether
// OAuth sign-in is available.
func InitProviders(cfg *config.Config, log *zap.Logger) bool {
	// gothic keeps its own gorilla store for the OAuth state; the default is
	// Secure=true which breaks plain-HTTP localhost.
	gothStore := sessions.NewCookieStore([]byte(cfg.Auth.SessionSecret))
	gothStore.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
	gothic.Store = gothStore

	if cfg.Auth.GoogleClientID == "" {
		log.Warn("GOOGLE_CLIENT_ID not set, Google sign-in disabled")
		return false
	}

	callback := cfg.Auth.GoogleCallbackURL
	if callback == "" {
		callback = cfg.BaseURL + "/api/auth/google/callback"
	}
	goth.UseProviders(
		google.New(cfg.Auth.GoogleClientID, cfg.Auth.GoogleClientSecret, callback, "email", "profile"),
	)
	log.Info("goth providers initialized", zap.String("provider", "google"), zap.String("callback", callback))
	return true
}
