// Package scraper fetches public LinkedIn profile data from a scraping API.
package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrNotConfigured   = errors.New("scraper is not configured")
	ErrProfileNotFound = errors.New("profile not found")
)

// Profile is the subset of a scraped profile the features use.
type Profile struct {
	Username   string       `json:"username"`
	FullName   string       `json:"fullName"`
	Headline   string       `json:"headline"`
	About      string       `json:"about"`
	Location   string       `json:"location"`
	Followers  string       `json:"followers,omitempty"`
	Experience []Experience `json:"experience,omitempty"`
}

type Experience struct {
	Position    string `json:"position"`
	CompanyName string `json:"company_name"`
	Summary     string `json:"summary,omitempty"`
}

// Client talks to the scraping API. Without an API key every call fails
// with ErrNotConfigured.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 45 * time.Second},
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Profile fetches the public profile for a LinkedIn username or profile URL.
func (c *Client) Profile(ctx context.Context, username string) (*Profile, error) {
	if !c.Enabled() {
		return nil, ErrNotConfigured
	}
	username = NormalizeUsername(username)
	if username == "" {
		return nil, ErrProfileNotFound
	}

	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("type", "profile")
	q.Set("linkId", username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/linkedin?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProfileNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("scraper returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// The API answers with an array of profiles for a single linkId.
	var profiles []Profile
	if err := json.Unmarshal(body, &profiles); err != nil {
		var single Profile
		if err2 := json.Unmarshal(body, &single); err2 != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		profiles = []Profile{single}
	}
	if len(profiles) == 0 || (profiles[0].FullName == "" && profiles[0].Headline == "") {
		return nil, ErrProfileNotFound
	}

	p := profiles[0]
	p.Username = username
	return &p, nil
}

// NormalizeUsername accepts a bare username or a linkedin.com/in/ URL.
func NormalizeUsername(raw string) string {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "/in/"); i >= 0 {
		s = s[i+len("/in/"):]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimPrefix(s, "@")
}
