package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/linkedgrow/dashboard/internal/billing"
	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/linkedgrow/dashboard/internal/database"
	"github.com/linkedgrow/dashboard/internal/email"
	"github.com/linkedgrow/dashboard/internal/llm"
	"github.com/linkedgrow/dashboard/internal/logger"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/scraper"
	"github.com/linkedgrow/dashboard/internal/server"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/voice"
	"github.com/linkedgrow/dashboard/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat); err != nil {
		panic(err)
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("exiting", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	log.Info("starting", zap.String("mode", cfg.Mode), zap.String("env", cfg.Env))

	switch {
	case cfg.Auth.EncryptionKey != "":
		if err := models.InitEncryption(cfg.Auth.EncryptionKey); err != nil {
			return err
		}
	case cfg.IsProduction():
		return errors.New("ENCRYPTION_KEY is required in production")
	default:
		log.Warn("ENCRYPTION_KEY not set: OAuth tokens are stored unencrypted")
	}

	db, err := database.Init(cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	if err := database.RunMigrations(db, log); err != nil {
		return err
	}
	st := store.New(db)

	if cfg.SeedDevData && !cfg.IsProduction() {
		if err := database.SeedDevData(context.Background(), st, log); err != nil {
			log.Warn("seeding dev data failed", zap.Error(err))
		}
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return err
		}
		rdb = redis.NewClient(opt)
		defer rdb.Close()

		if err := worker.InitClient(cfg.RedisURL); err != nil {
			return err
		}
		defer func() { _ = worker.CloseClient() }()
	} else {
		log.Warn("REDIS_URL not set: background jobs run inline, rate limits are per process")
	}

	srv, err := server.New(cfg, st, server.Integrations{
		LLM:      llm.New(cfg.OpenAI, log.Named("llm")),
		Profiles: scraper.NewClient(cfg.Scraper.BaseURL, cfg.Scraper.APIKey),
		Voice:    voice.NewClient(cfg.Voice.BaseURL, cfg.Voice.APIKey, cfg.Voice.AssistantID, false),
		Payments: billing.NewStripePayments(cfg.Stripe.SecretKey, cfg.BaseURL),
		Sender:   email.NewSender(cfg.Email, log.Named("email")),
		Redis:    rdb,
	}, log)
	if err != nil {
		return err
	}

	switch cfg.Mode {
	case "worker":
		if cfg.RedisURL == "" {
			return errors.New("worker mode requires REDIS_URL")
		}
		stopScheduler, err := worker.StartScheduler(cfg, log)
		if err != nil {
			return err
		}
		defer stopScheduler()
		return worker.Run(cfg, srv.Jobs, log)

	case "embedded":
		if cfg.RedisURL != "" {
			stopWorker, err := worker.Start(cfg, srv.Jobs, log)
			if err != nil {
				return err
			}
			defer stopWorker()
			stopScheduler, err := worker.StartScheduler(cfg, log)
			if err != nil {
				return err
			}
			defer stopScheduler()
		}
		return serve(srv, log)

	default:
		return serve(srv, log)
	}
}

// serve runs the HTTP server until SIGINT or SIGTERM.
func serve(srv *server.Server, log *zap.Logger) error {
	httpServer := srv.HTTPServer()

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
