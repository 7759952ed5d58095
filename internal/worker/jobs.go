package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linkedgrow/dashboard/internal/email"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

var ErrEmptyBroadcast = errors.New("subject and html or text are required")

// Jobs holds the work behind each task so it can also run inline when no
// queue is configured.
type Jobs struct {
	users       store.Users
	tokens      store.ResetTokens
	sender      email.Sender
	broadcaster *email.Broadcaster
	appURL      string
	log         *zap.Logger
	now         func() time.Time
}

func NewJobs(users store.Users, tokens store.ResetTokens, sender email.Sender, broadcaster *email.Broadcaster, appURL string, log *zap.Logger) *Jobs {
	if log == nil {
		log = zap.NewNop()
	}
	return &Jobs{
		users:       users,
		tokens:      tokens,
		sender:      sender,
		broadcaster: broadcaster,
		appURL:      appURL,
		log:         log,
		now:         time.Now,
	}
}

// SendWelcome emails a user who just finished onboarding.
func (j *Jobs) SendWelcome(ctx context.Context, userID string) error {
	u, err := j.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	msg, err := email.Welcome(u.Email, u.Name, j.appURL+"/dashboard")
	if err != nil {
		return err
	}
	if err := j.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}
	j.log.Info("welcome email sent", zap.String("user_id", userID), zap.String("provider", j.sender.Provider()))
	return nil
}

// Broadcast sends p to every user who opted in to marketing email.
func (j *Jobs) Broadcast(ctx context.Context, p BroadcastPayload) (email.BroadcastResult, error) {
	if strings.TrimSpace(p.Subject) == "" || (p.HTML == "" && p.Text == "") {
		return email.BroadcastResult{}, ErrEmptyBroadcast
	}
	users, err := j.users.ListMarketingRecipients(ctx)
	if err != nil {
		return email.BroadcastResult{}, err
	}
	recipients := make([]string, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, u.Email)
	}

	return j.broadcaster.Send(ctx, recipients, email.Message{Subject: p.Subject, HTML: p.HTML, Text: p.Text}), nil
}

// PurgeTokens deletes expired password reset tokens.
func (j *Jobs) PurgeTokens(ctx context.Context) (int64, error) {
	n, err := j.tokens.PurgeExpiredResetTokens(ctx, j.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.log.Info("expired reset tokens purged", zap.Int64("count", n))
	}
	return n, nil
}

// Dispatcher hands work to the queue when one is configured and runs it
// in-process otherwise.
type Dispatcher struct {
	jobs *Jobs
	log  *zap.Logger
}

func NewDispatcher(jobs *Jobs, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{jobs: jobs, log: log}
}

// Welcome matches onboarding.CompletionHook. Without a queue the email is
// sent in the background, best effort.
func (d *Dispatcher) Welcome(ctx context.Context, userID string) {
	if QueueEnabled() {
		if err := EnqueueWelcomeEmail(userID); err != nil {
			d.log.Warn("enqueue welcome email failed", zap.String("user_id", userID), zap.Error(err))
		}
		return
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	go func() {
		defer cancel()
		if err := d.jobs.SendWelcome(bg, userID); err != nil {
			d.log.Warn("welcome email failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// Broadcast runs p now, or enqueues it when async is set and a queue exists.
// The task id is returned for queued runs.
func (d *Dispatcher) Broadcast(ctx context.Context, p BroadcastPayload, async bool) (*email.BroadcastResult, string, error) {
	if async && QueueEnabled() {
		if strings.TrimSpace(p.Subject) == "" || (p.HTML == "" && p.Text == "") {
			return nil, "", ErrEmptyBroadcast
		}
		id, err := EnqueueBroadcast(p)
		if err != nil {
			return nil, "", fmt.Errorf("enqueue broadcast: %w", err)
		}
		return nil, id, nil
	}
	res, err := d.jobs.Broadcast(ctx, p)
	if err != nil {
		return nil, "", err
	}
	return &res, "", nil
}
