package worker

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/linkedgrow/dashboard/internal/config"
	"go.uber.org/zap"
)

// purgeSchedule is the cron expression for the expired reset token sweep.
const purgeSchedule = "@every 1h"

// StartScheduler creates and starts an Asynq Scheduler for periodic tasks.
// Returns a stop function for graceful shutdown.
func StartScheduler(cfg *config.Config, logger *zap.Logger) (stop func(), err error) {
	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	scheduler := asynq.NewScheduler(
		redisOpt,
		&asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.InfoLevel,
			Logger:   newAsynqLogger(logger),
		},
	)

	task := asynq.NewTask(
		TaskPurgeTokens,
		nil,
		asynq.MaxRetry(1),
		asynq.Timeout(time.Minute),
		asynq.Unique(time.Hour), // Prevent duplicate if two schedulers run
	)

	entryID, err := scheduler.Register(purgeSchedule, task)
	if err != nil {
		return nil, fmt.Errorf("failed to register purge schedule: %w", err)
	}

	// Start scheduler (non-blocking)
	if err := scheduler.Start(); err != nil {
		return nil, fmt.Errorf("failed to start scheduler: %w", err)
	}

	logger.Info("Scheduler started",
		zap.String("schedule", purgeSchedule),
		zap.String("entry_id", entryID),
	)

	return func() { scheduler.Shutdown() }, nil
}
