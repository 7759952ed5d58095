// Package onboarding gates the dashboard behind the role, discovery and terms
// steps. Progress only moves forward and completion is terminal.
package onboarding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

// Steps accepted by SaveStep.
const (
	StepRole      = "role"
	StepDiscovery = "discovery"
	StepComplete  = "complete"
)

// Page paths of each step.
const (
	PathRole      = "/onboarding/role"
	PathDiscovery = "/onboarding/discovery"
	PathTerms     = "/onboarding/terms"
)

var (
	ErrInvalidStep  = errors.New("invalid step")
	ErrMissingData  = errors.New("missing step data")
	ErrMissingTerms = errors.New("terms acceptance is required")
)

// Status is the persisted onboarding state of one user.
type Status struct {
	IsComplete bool            `json:"isComplete"`
	Role       json.RawMessage `json:"role"`
	Discovery  json.RawMessage `json:"discovery"`
	Terms      json.RawMessage `json:"terms"`
	Marketing  bool            `json:"marketing"`
}

// CompletionHook runs after a user finishes onboarding for the first time.
type CompletionHook func(ctx context.Context, userID string)

type Gate struct {
	store      store.Onboarding
	log        *zap.Logger
	onComplete CompletionHook
}

func NewGate(s store.Onboarding, log *zap.Logger) *Gate {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{store: s, log: log}
}

// OnComplete registers a hook fired once per user on reaching COMPLETE.
func (g *Gate) OnComplete(h CompletionHook) {
	g.onComplete = h
}

// GetStatus reads the user's onboarding columns. A schema without the
// columns reports an incomplete status rather than an error.
func (g *Gate) GetStatus(ctx context.Context, userID string) (*Status, error) {
	rec, err := g.store.GetOnboarding(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get onboarding status: %w", err)
	}
	return &Status{
		IsComplete: rec.Complete,
		Role:       rec.Role,
		Discovery:  rec.Discovery,
		Terms:      rec.Terms,
		Marketing:  rec.Marketing,
	}, nil
}

// SaveStep persists one step. Re-saving an earlier step after completion
// rewrites its data but never reverts completion.
func (g *Gate) SaveStep(ctx context.Context, userID, step string, data json.RawMessage) error {
	switch step {
	case StepRole:
		if isEmpty(data) {
			return ErrMissingData
		}
		return g.store.SaveOnboardingRole(ctx, userID, data)
	case StepDiscovery:
		if isEmpty(data) {
			return ErrMissingData
		}
		return g.store.SaveOnboardingDiscovery(ctx, userID, data)
	case StepComplete:
		return g.complete(ctx, userID, data)
	default:
		return ErrInvalidStep
	}
}

func (g *Gate) complete(ctx context.Context, userID string, data json.RawMessage) error {
	var payload struct {
		Terms     json.RawMessage `json:"terms"`
		Marketing any             `json:"marketing"`
	}
	if isEmpty(data) {
		return ErrMissingTerms
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ErrMissingTerms
	}
	if isEmpty(payload.Terms) {
		return ErrMissingTerms
	}
	marketing, _ := payload.Marketing.(bool)

	before, err := g.store.GetOnboarding(ctx, userID)
	if err != nil {
		return fmt.Errorf("get onboarding status: %w", err)
	}
	if err := g.store.CompleteOnboarding(ctx, userID, payload.Terms, marketing); err != nil {
		return err
	}

	g.log.Info("onboarding completed", zap.String("user_id", userID), zap.Bool("marketing", marketing))
	if !before.Complete && g.onComplete != nil {
		g.onComplete(ctx, userID)
	}
	return nil
}

// NextStep returns the page of the first unfinished step, or "" when complete.
func NextStep(s *Status) string {
	switch {
	case s == nil:
		return PathRole
	case s.IsComplete:
		return ""
	case isEmpty(s.Role):
		return PathRole
	case isEmpty(s.Discovery):
		return PathDiscovery
	default:
		return PathTerms
	}
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
