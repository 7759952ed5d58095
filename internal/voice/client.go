package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Client handles communication with the voice-agent platform
type Client struct {
	baseURL     string
	apiKey      string
	assistantID string
	httpClient  *http.Client
	stubMode    bool
}

// NewClient creates a voice client. With stubMode set, or without an API
// key, sessions are mocked locally and labelled as such.
func NewClient(baseURL, apiKey, assistantID string, stubMode bool) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		assistantID: assistantID,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		stubMode:    stubMode || apiKey == "" || assistantID == "",
	}
}

// Stubbed reports whether sessions are mocked.
func (c *Client) Stubbed() bool {
	return c.stubMode
}

// CreateSession starts a practice call for req
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	opening := openingLine(req)

	if c.stubMode {
		return &Session{
			ID:       "mock-" + uuid.NewString(),
			Status:   "mock",
			Scenario: req.Scenario,
			Opening:  opening,
			Mock:     true,
		}, nil
	}

	body := callRequest{
		AssistantID: c.assistantID,
		AssistantOverrides: assistantOverrides{
			FirstMessage: opening,
			VariableValues: map[string]string{
				"scenario":    string(req.Scenario),
				"target_role": req.TargetRole,
				"company":     req.Company,
				"notes":       req.Notes,
			},
		},
		Metadata: map[string]string{"user_id": req.UserID},
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call/web", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("voice platform returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var call callResponse
	if err := json.NewDecoder(resp.Body).Decode(&call); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &Session{
		ID:       call.ID,
		Status:   call.Status,
		JoinURL:  call.WebCallURL,
		Scenario: req.Scenario,
		Opening:  opening,
	}, nil
}

func openingLine(req SessionRequest) string {
	switch req.Scenario {
	case ScenarioSalesCall:
		if req.Company != "" {
			return fmt.Sprintf("Hi, this is the buyer at %s. You have ten minutes, what did you want to show me?", req.Company)
		}
		return "Hi, you have ten minutes. What did you want to show me?"
	case ScenarioNetworking:
		return "Nice to meet you! What brings you to this event?"
	default:
		if req.TargetRole != "" {
			return fmt.Sprintf("Thanks for joining. Let's start with why you're a fit for the %s role.", req.TargetRole)
		}
		return "Thanks for joining. Tell me a little about yourself."
	}
}
