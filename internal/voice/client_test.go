package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubSessionIsLabelled(t *testing.T) {
	c := NewClient("https://voice.invalid", "", "", false)
	require.True(t, c.Stubbed())

	sess, err := c.CreateSession(context.Background(), SessionRequest{UserID: "u1", Scenario: ScenarioInterview, TargetRole: "PM"})
	require.NoError(t, err)
	assert.True(t, sess.Mock)
	assert.True(t, strings.HasPrefix(sess.ID, "mock-"))
	assert.Contains(t, sess.Opening, "PM")
}

func TestCreateSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call/web", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body callRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "asst_1", body.AssistantID)
		assert.Equal(t, "sales-call", body.AssistantOverrides.VariableValues["scenario"])
		assert.Equal(t, "u1", body.Metadata["user_id"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"call_9","status":"queued","webCallUrl":"https://join.test/call_9"}`))
	}))
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL, "key", "asst_1", false)
	sess, err := c.CreateSession(context.Background(), SessionRequest{UserID: "u1", Scenario: ScenarioSalesCall, Company: "Acme"})
	require.NoError(t, err)
	assert.False(t, sess.Mock)
	assert.Equal(t, "call_9", sess.ID)
	assert.Equal(t, "https://join.test/call_9", sess.JoinURL)
}

func TestCreateSessionUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad assistant", http.StatusBadRequest)
	}))
	t.Cleanup(srv.Close)

	_, err := NewClient(srv.URL, "key", "asst_1", false).CreateSession(context.Background(), SessionRequest{Scenario: ScenarioInterview})
	assert.ErrorContains(t, err, "400")
}

func TestScenarioValid(t *testing.T) {
	assert.True(t, ScenarioNetworking.Valid())
	assert.False(t, Scenario("karaoke").Valid())
}
