package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/linkedgrow/dashboard/internal/email"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/store/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []email.Message
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg email.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[msg.To] {
		return errors.New("mailbox unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) Provider() string { return "test" }

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newJobs(t *testing.T) (*Jobs, *store.Gorm, *recordingSender) {
	t.Helper()
	st := storetest.New(t)
	sender := &recordingSender{fail: map[string]bool{}}
	jobs := NewJobs(st, st, sender, email.NewBroadcaster(sender, 0, nil), "https://app.test", nil)
	return jobs, st, sender
}

func createUser(t *testing.T, st *store.Gorm, addr string, marketing bool) *models.User {
	t.Helper()
	ctx := context.Background()
	u := &models.User{Email: addr, Name: "Test"}
	require.NoError(t, st.CreateUser(ctx, u))
	require.NoError(t, st.CompleteOnboarding(ctx, u.ID, json.RawMessage(`{"accepted":true}`), marketing))
	return u
}

func TestWelcomeTask(t *testing.T) {
	jobs, st, sender := newJobs(t)
	u := createUser(t, st, "a@x.com", false)
	mux := NewMux(jobs, zap.NewNop())

	payload, _ := json.Marshal(welcomePayload{UserID: u.ID})
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskWelcomeEmail, payload)))
	require.Equal(t, 1, sender.count())
	assert.Equal(t, "a@x.com", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].HTML, "https://app.test/dashboard")

	payload, _ = json.Marshal(welcomePayload{UserID: "gone"})
	err := mux.ProcessTask(context.Background(), asynq.NewTask(TaskWelcomeEmail, payload))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = mux.ProcessTask(context.Background(), asynq.NewTask(TaskWelcomeEmail, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestBroadcastReachesOptedInUsersOnly(t *testing.T) {
	jobs, st, sender := newJobs(t)
	createUser(t, st, "yes1@x.com", true)
	createUser(t, st, "no@x.com", false)
	createUser(t, st, "yes2@x.com", true)
	sender.fail["yes2@x.com"] = true

	res, err := jobs.Broadcast(context.Background(), BroadcastPayload{Subject: "News", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "yes2@x.com", res.Errors[0].Email)

	_, err = jobs.Broadcast(context.Background(), BroadcastPayload{Subject: " "})
	assert.ErrorIs(t, err, ErrEmptyBroadcast)
}

func TestBroadcastLogsOneSummary(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	st := storetest.New(t)
	sender := &recordingSender{fail: map[string]bool{}}
	jobs := NewJobs(st, st, sender, email.NewBroadcaster(sender, 0, log), "https://app.test", log)
	createUser(t, st, "in@x.com", true)

	res, err := jobs.Broadcast(context.Background(), BroadcastPayload{Subject: "News", Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Sent)

	summaries := logs.FilterMessage("broadcast finished").All()
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 1, summaries[0].ContextMap()["sent"])
}

func TestPurgeTask(t *testing.T) {
	jobs, st, _ := newJobs(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	jobs.now = func() time.Time { return now }

	require.NoError(t, st.ReplaceResetToken(ctx, &models.PasswordResetToken{
		Email: "a@x.com", TokenHash: "old", ExpiresAt: now.Add(-time.Minute),
	}))
	require.NoError(t, st.ReplaceResetToken(ctx, &models.PasswordResetToken{
		Email: "b@x.com", TokenHash: "live", ExpiresAt: now.Add(time.Hour),
	}))

	require.NoError(t, NewMux(jobs, zap.NewNop()).ProcessTask(ctx, asynq.NewTask(TaskPurgeTokens, nil)))

	_, err := st.FindResetToken(ctx, "a@x.com", "old")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.FindResetToken(ctx, "b@x.com", "live")
	assert.NoError(t, err)
}

func TestDispatcherRunsInlineWithoutQueue(t *testing.T) {
	require.False(t, QueueEnabled())
	jobs, st, sender := newJobs(t)
	u := createUser(t, st, "a@x.com", true)
	d := NewDispatcher(jobs, nil)

	d.Welcome(context.Background(), u.ID)
	require.Eventually(t, func() bool { return sender.count() == 1 }, time.Second, 10*time.Millisecond)

	res, id, err := d.Broadcast(context.Background(), BroadcastPayload{Subject: "s", Text: "t"}, true)
	require.NoError(t, err)
	assert.Empty(t, id)
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Sent)

	_, err = EnqueueBroadcast(BroadcastPayload{Subject: "s"})
	assert.ErrorIs(t, err, ErrQueueDisabled)
}
