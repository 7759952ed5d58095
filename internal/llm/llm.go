// Package llm wraps an OpenAI-compatible chat completions API.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/linkedgrow/dashboard/internal/config"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var (
	ErrNotConfigured = errors.New("llm is not configured")
	ErrEmptyResponse = errors.New("llm returned no content")
	ErrNoJSON        = errors.New("llm response contains no JSON")
)

const defaultTimeout = 60 * time.Second

// Client is safe for concurrent use. A Client built without an API key
// answers every call with ErrNotConfigured.
type Client struct {
	api         *openai.Client
	model       string
	temperature float32
	timeout     time.Duration
	log         *zap.Logger
}

// New builds a client from cfg.
func New(cfg config.OpenAIConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		model:       cfg.Model,
		temperature: 0.7,
		timeout:     defaultTimeout,
		log:         log,
	}
	if c.model == "" {
		c.model = openai.GPT4oMini
	}
	if cfg.APIKey == "" {
		log.Warn("OPENAI_API_KEY not set, content features will return fallback results")
		return c
	}

	apiCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	c.api = openai.NewClientWithConfig(apiCfg)
	return c
}

func (c *Client) Enabled() bool {
	return c != nil && c.api != nil
}

// Complete sends one system and one user message and returns the reply text.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, nil)
}

// CompleteJSON asks for a JSON object and decodes it into out.
func (c *Client) CompleteJSON(ctx context.Context, system, user string, out any) error {
	format := &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	text, err := c.complete(ctx, system, user, format)
	if err != nil {
		return err
	}
	raw, err := ExtractJSON(text)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode llm json: %w", err)
	}
	return nil
}

func (c *Client) complete(ctx context.Context, system, user string, format *openai.ChatCompletionResponseFormat) (string, error) {
	if !c.Enabled() {
		return "", ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: format,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}

	c.log.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return resp.Choices[0].Message.Content, nil
}

// ExtractJSON returns the outermost JSON object or array in s, tolerating
// markdown code fences and prose around it.
func ExtractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", ErrNoJSON
	}
	closer := byte('}')
	if s[start] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end <= start {
		return "", ErrNoJSON
	}

	raw := s[start : end+1]
	if !json.Valid([]byte(raw)) {
		return "", ErrNoJSON
	}
	return raw, nil
}
