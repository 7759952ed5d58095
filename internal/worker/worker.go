package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

// Run starts the Asynq worker server and blocks until shutdown signal.
// Use this for standalone worker mode.
func Run(cfg *config.Config, jobs *Jobs, logger *zap.Logger) error {
	srv, mux, err := newServer(cfg, jobs, logger)
	if err != nil {
		return err
	}

	// Note: Scheduler is started separately in main.go worker mode
	// and deferred there for shutdown coordination.
	return srv.Run(mux)
}

// Start starts the Asynq worker in non-blocking mode and returns a stop function.
// Use this for embedded mode so the caller can coordinate shutdown.
func Start(cfg *config.Config, jobs *Jobs, logger *zap.Logger) (stop func(), err error) {
	srv, mux, err := newServer(cfg, jobs, logger)
	if err != nil {
		return nil, err
	}
	if err := srv.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}
	return func() { srv.Shutdown() }, nil
}

func newServer(cfg *config.Config, jobs *Jobs, logger *zap.Logger) (*asynq.Server, *asynq.ServeMux, error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	logger = logger.Named("worker")

	srv := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency:     5,
			ShutdownTimeout: 30 * time.Second,
			ErrorHandler:    asynq.ErrorHandlerFunc(makeErrorHandler(logger)),
			Logger:          newAsynqLogger(logger),
		},
	)

	mux := NewMux(jobs, logger)

	logger.Info("Worker starting", zap.Int("concurrency", 5))
	return srv, mux, nil
}

// NewMux routes every task type to its handler.
func NewMux(jobs *Jobs, logger *zap.Logger) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskWelcomeEmail, handleWelcomeEmail(logger, jobs))
	mux.HandleFunc(TaskEmailBroadcast, handleBroadcast(logger, jobs))
	mux.HandleFunc(TaskPurgeTokens, handlePurgeTokens(jobs))
	return mux
}

func handleWelcomeEmail(logger *zap.Logger, jobs *Jobs) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload welcomePayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.UserID == "" {
			// Invalid payload - don't retry
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		logger.Info("Processing email:welcome task", zap.String("user_id", payload.UserID))

		err := jobs.SendWelcome(ctx, payload.UserID)
		if errors.Is(err, store.ErrNotFound) {
			// Account deleted before the task ran
			return fmt.Errorf("user not found: %w", asynq.SkipRetry)
		}
		return err
	}
}

func handleBroadcast(logger *zap.Logger, jobs *Jobs) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload BroadcastPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("invalid payload: %w", asynq.SkipRetry)
		}

		res, err := jobs.Broadcast(ctx, payload)
		if errors.Is(err, ErrEmptyBroadcast) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		if err != nil {
			return err
		}

		if w := task.ResultWriter(); w != nil {
			// Visible in the task inspector
			if data, err := json.Marshal(res); err == nil {
				_, _ = w.Write(data)
			}
		}
		logger.Info("Broadcast task completed", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
		return nil
	}
}

func handlePurgeTokens(jobs *Jobs) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, _ *asynq.Task) error {
		_, err := jobs.PurgeTokens(ctx)
		return err
	}
}

// makeErrorHandler creates an error handler function with logger closure.
func makeErrorHandler(logger *zap.Logger) func(context.Context, *asynq.Task, error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		logger.Error("Task execution failed",
			zap.String("task_type", task.Type()),
			zap.Error(err),
			zap.Int("retry_count", retried),
			zap.Int("max_retry", maxRetry),
		)

		// Check if this is the final failure (task will move to dead letter queue)
		if retried >= maxRetry {
			logger.Error("Task moved to dead letter queue (all retries exhausted)",
				zap.String("task_type", task.Type()),
			)
		}
	}
}
