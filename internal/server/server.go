// Package server assembles the HTTP surface: API routes under /api, page
// shells, health probes and the middleware stack around them.
package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/billing"
	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/linkedgrow/dashboard/internal/email"
	"github.com/linkedgrow/dashboard/internal/features"
	"github.com/linkedgrow/dashboard/internal/health"
	"github.com/linkedgrow/dashboard/internal/onboarding"
	"github.com/linkedgrow/dashboard/internal/pages"
	"github.com/linkedgrow/dashboard/internal/ratelimit"
	"github.com/linkedgrow/dashboard/internal/settings"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/usage"
	"github.com/linkedgrow/dashboard/internal/voice"
	"github.com/linkedgrow/dashboard/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const sessionCookieName = "linkedgrow_session"

// Integrations are the external collaborators. Nil members degrade their
// feature to a labelled fallback.
type Integrations struct {
	LLM      features.Completer
	Profiles features.ProfileSource
	Voice    features.SessionCreator
	Payments billing.Payments
	Sender   email.Sender
	Redis    *redis.Client
}

type Server struct {
	Router     *gin.Engine
	Jobs       *worker.Jobs
	Dispatcher *worker.Dispatcher

	cfg *config.Config
	log *zap.Logger
}

// New wires every component against st and builds the router.
func New(cfg *config.Config, st *store.Gorm, in Integrations, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if in.Sender == nil {
		in.Sender = email.NewLogSender(log)
	}
	if in.Voice == nil {
		in.Voice = voice.NewClient("", "", "", true)
	}

	catalog, err := billing.LoadCatalog()
	if err != nil {
		return nil, fmt.Errorf("load billing catalog: %w", err)
	}

	sessionStore := auth.NewCookieSessions(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	authHandler := auth.NewHandler(st, sessionStore, in.Sender, auth.Options{
		AppURL:   cfg.BaseURL,
		ResetTTL: cfg.Auth.ResetTokenTTL,
	}, log.Named("auth"))
	if in.Redis != nil {
		authHandler.SetResetLimiter(ratelimit.NewRedisWindow(in.Redis, "ratelimit:forgot", 3, 15*time.Minute))
	} else {
		authHandler.SetResetLimiter(ratelimit.NewPerKey(1, 3))
	}
	googleEnabled := auth.InitProviders(cfg, log)

	gate := onboarding.NewGate(st, log.Named("onboarding"))
	meter := usage.NewMeter(st, cfg.Usage.FreeMonthlyLimit, log.Named("usage"))
	billingService := billing.NewService(st, meter, catalog, in.Payments, log.Named("billing"))

	jobs := worker.NewJobs(st, st, in.Sender,
		email.NewBroadcaster(in.Sender, cfg.Email.BroadcastDelay, log.Named("broadcast")),
		cfg.BaseURL, log.Named("jobs"))
	dispatcher := worker.NewDispatcher(jobs, log)
	gate.OnComplete(dispatcher.Welcome)

	featureService := features.NewService(features.Deps{
		Meter:    meter,
		LLM:      in.LLM,
		Profiles: in.Profiles,
		Voice:    in.Voice,
		Settings: st,
		Log:      log,
	})
	settingsHandler := settings.NewHandler(st, log)
	pageHandler := pages.New(gate, sessionStore, log.Named("pages"))

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(requestLogger(log.Named("http")), recovery(log))
	r.Use(cors.New(corsConfig(cfg)))

	cookieStore := cookie.NewStore([]byte(cfg.Auth.SessionSecret))
	cookieStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   30 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionCookieName, cookieStore))

	r.GET("/health", gin.WrapF(health.Handler))
	r.GET("/health/ready", gin.WrapH(health.NewReadiness(st.DB(), in.Redis)))

	api := r.Group("/api")

	public := api.Group("/auth", ratelimit.Middleware(ratelimit.NewPerKey(cfg.AuthRateLimit, cfg.AuthRateLimit)))
	public.POST("/sign-up", authHandler.SignUp)
	public.POST("/sign-in", authHandler.SignIn)
	public.POST("/forgot-password", authHandler.ForgotPassword)
	public.POST("/reset-password", authHandler.ResetPassword)
	if googleEnabled {
		public.GET("/google", authHandler.GoogleLogin)
		public.GET("/google/callback", authHandler.GoogleCallback)
	}

	api.POST("/stripe/webhook", billingService.HandleWebhook(cfg.Stripe.WebhookSecret))

	protected := api.Group("", auth.RequireSession(sessionStore))
	{
		protected.POST("/auth/sign-out", authHandler.SignOut)
		protected.GET("/auth/session", authHandler.GetSession)
		protected.DELETE("/user/delete", authHandler.DeleteAccount)

		protected.GET("/onboarding", gate.HandleGetStatus)
		protected.POST("/onboarding", gate.HandleSaveStep)

		protected.GET("/usage", usage.HandleGetUsage(meter))

		protected.POST("/check-feature", billingService.HandleCheckFeature)
		protected.POST("/track-usage", billingService.HandleTrackUsage)
		protected.POST("/checkout", billingService.HandleCheckout)
		protected.POST("/attach", billingService.HandleAttach)
		protected.GET("/customer", billingService.HandleCustomer)
		protected.POST("/portal", billingService.HandlePortal)

		featureService.Register(protected)

		protected.GET("/settings/linkedin", settingsHandler.GetLinkedIn)
		protected.PUT("/settings/linkedin", settingsHandler.PutLinkedIn)

		admin := protected.Group("/admin", auth.RequireAdmin(st))
		admin.POST("/email/broadcast", handleBroadcast(dispatcher, log))
	}

	pageHandler.Register(r)

	log.Info("router ready",
		zap.Bool("google_oauth", googleEnabled),
		zap.Bool("billing", billingService.Configured()),
		zap.Bool("queue", worker.QueueEnabled()),
		zap.String("email_provider", in.Sender.Provider()),
	)

	return &Server{Router: r, Jobs: jobs, Dispatcher: dispatcher, cfg: cfg, log: log}, nil
}

// HTTPServer wraps the router with the listen address and timeouts.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

func corsConfig(cfg *config.Config) cors.Config {
	origins := []string{cfg.BaseURL}
	for _, o := range strings.Split(cfg.FrontendURL, ",") {
		if o = strings.TrimSpace(o); o != "" && o != cfg.BaseURL {
			origins = append(origins, o)
		}
	}
	return cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "HX-Request"},
		ExposeHeaders:    []string{"HX-Redirect"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
}
