package email

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RecipientError records one failed delivery in a broadcast.
type RecipientError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

// BroadcastResult summarises a broadcast run.
type BroadcastResult struct {
	Sent   int              `json:"sent"`
	Failed int              `json:"failed"`
	Total  int              `json:"total"`
	Errors []RecipientError `json:"errors"`
}

// Broadcaster sends one message to many recipients, one at a time with a
// fixed pause between sends. Failures are collected and the loop continues.
type Broadcaster struct {
	sender Sender
	delay  time.Duration
	log    *zap.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewBroadcaster(sender Sender, delay time.Duration, log *zap.Logger) *Broadcaster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{sender: sender, delay: delay, log: log, sleep: sleepContext}
}

// Send delivers msg to every recipient. Cancelling ctx stops the loop; the
// untried recipients are not counted as failed.
func (b *Broadcaster) Send(ctx context.Context, recipients []string, msg Message) BroadcastResult {
	res := BroadcastResult{Total: len(recipients), Errors: []RecipientError{}}

	for i, to := range recipients {
		if i > 0 && b.delay > 0 {
			if err := b.sleep(ctx, b.delay); err != nil {
				b.log.Warn("broadcast interrupted", zap.Int("sent", res.Sent), zap.Int("remaining", len(recipients)-i))
				break
			}
		}

		m := msg
		m.To = to
		if err := b.sender.Send(ctx, m); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, RecipientError{Email: to, Error: err.Error()})
			b.log.Error("broadcast send failed", zap.String("to", to), zap.Error(err))
			continue
		}
		res.Sent++
	}

	b.log.Info("broadcast finished",
		zap.Int("sent", res.Sent),
		zap.Int("failed", res.Failed),
		zap.Int("total", res.Total),
	)
	return res
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
