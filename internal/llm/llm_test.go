package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeOpenAI(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req["model"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 3, "completion_tokens": 4, "total_tokens": 7},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return New(config.OpenAIConfig{APIKey: "sk-test", Model: "test-model", BaseURL: srv.URL + "/v1/"}, nil)
}

func TestComplete(t *testing.T) {
	c := newTestClient(fakeOpenAI(t, "Hello there"))
	require.True(t, c.Enabled())

	out, err := c.Complete(context.Background(), "be brief", "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello there", out)
}

func TestCompleteJSON(t *testing.T) {
	c := newTestClient(fakeOpenAI(t, "```json\n{\"headline\":\"Builder\"}\n```"))

	var out struct {
		Headline string `json:"headline"`
	}
	require.NoError(t, c.CompleteJSON(context.Background(), "sys", "user", &out))
	assert.Equal(t, "Builder", out.Headline)
}

func TestNotConfigured(t *testing.T) {
	c := New(config.OpenAIConfig{}, nil)
	assert.False(t, c.Enabled())

	_, err := c.Complete(context.Background(), "a", "b")
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	t.Cleanup(srv.Close)

	_, err := newTestClient(srv).Complete(context.Background(), "a", "b")
	assert.Error(t, err)
}

func TestExtractJSON(t *testing.T) {
	cases := map[string]string{
		`{"a":1}`:                       `{"a":1}`,
		"Sure! {\"a\":{\"b\":2}} done.": `{"a":{"b":2}}`,
		"```json\n[1,2]\n```":           `[1,2]`,
	}
	for in, want := range cases {
		got, err := ExtractJSON(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ExtractJSON("no json here")
	assert.ErrorIs(t, err, ErrNoJSON)
	_, err = ExtractJSON("{broken")
	assert.ErrorIs(t, err, ErrNoJSON)
}
