package worker

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"
)

// Task type constants
const (
	TaskWelcomeEmail   = "email:welcome"
	TaskEmailBroadcast = "email:broadcast"
	TaskPurgeTokens    = "tokens:purge"
)

// ErrQueueDisabled is returned by the Enqueue functions when no client was initialized.
var ErrQueueDisabled = errors.New("task queue is not configured")

// Package-level Asynq client (singleton)
var client *asynq.Client

// InitClient initializes the global Asynq client for task enqueueing.
// Must be called before any EnqueueX functions.
func InitClient(redisURL string) error {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return err
	}

	client = asynq.NewClient(opt)
	return nil
}

// CloseClient closes the Asynq client connection gracefully.
func CloseClient() error {
	if client != nil {
		err := client.Close()
		client = nil
		return err
	}
	return nil
}

// QueueEnabled reports whether InitClient succeeded.
func QueueEnabled() bool {
	return client != nil
}

type welcomePayload struct {
	UserID string `json:"user_id"`
}

// BroadcastPayload is the admin broadcast message.
type BroadcastPayload struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// EnqueueWelcomeEmail enqueues the post-onboarding welcome email.
// Unique for a day so a retried completion does not send twice.
func EnqueueWelcomeEmail(userID string) error {
	if client == nil {
		return ErrQueueDisabled
	}
	payload, err := json.Marshal(welcomePayload{UserID: userID})
	if err != nil {
		return err
	}

	task := asynq.NewTask(
		TaskWelcomeEmail,
		payload,
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
		asynq.Retention(24*time.Hour),
		asynq.Unique(24*time.Hour),
	)
	_, err = client.Enqueue(task)
	return err
}

// EnqueueBroadcast enqueues a marketing broadcast and returns the task id.
// Broadcasts are not retried: a retry would resend to everyone already reached.
func EnqueueBroadcast(p BroadcastPayload) (string, error) {
	if client == nil {
		return "", ErrQueueDisabled
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	task := asynq.NewTask(
		TaskEmailBroadcast,
		payload,
		asynq.MaxRetry(0),
		asynq.Timeout(2*time.Hour),
		asynq.Retention(7*24*time.Hour),
	)
	info, err := client.Enqueue(task)
	if err != nil {
		return "", err
	}
	return info.ID, nil
}
