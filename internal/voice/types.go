// Package voice creates practice calls on the voice-agent platform.
package voice

import "errors"

// ErrNotConfigured is returned when no voice client is wired.
var ErrNotConfigured = errors.New("voice platform is not configured")

// Scenario names the roleplay a practice session runs.
type Scenario string

const (
	ScenarioInterview  Scenario = "interview"
	ScenarioSalesCall  Scenario = "sales-call"
	ScenarioNetworking Scenario = "networking"
)

// Valid reports whether s is a supported scenario.
func (s Scenario) Valid() bool {
	switch s {
	case ScenarioInterview, ScenarioSalesCall, ScenarioNetworking:
		return true
	}
	return false
}

// SessionRequest describes the practice call to create
type SessionRequest struct {
	UserID     string   `json:"user_id"`
	Scenario   Scenario `json:"scenario"`
	TargetRole string   `json:"target_role,omitempty"`
	Company    string   `json:"company,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// Session is a created practice call the browser can join
type Session struct {
	ID       string   `json:"id"`
	Status   string   `json:"status"`
	JoinURL  string   `json:"join_url,omitempty"`
	Scenario Scenario `json:"scenario"`
	Opening  string   `json:"opening"`
	Mock     bool     `json:"mock,omitempty"`
}

// callRequest is the platform's create-call body.
type callRequest struct {
	AssistantID        string             `json:"assistantId"`
	AssistantOverrides assistantOverrides `json:"assistantOverrides"`
	Metadata           map[string]string  `json:"metadata,omitempty"`
}

type assistantOverrides struct {
	FirstMessage   string            `json:"firstMessage,omitempty"`
	VariableValues map[string]string `json:"variableValues,omitempty"`
}

// callResponse is the subset of the platform's call object we read.
type callResponse struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	WebCallURL string `json:"webCallUrl"`
}
