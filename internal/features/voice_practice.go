package features

import (
	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/voice"
)

type voicePracticeRequest struct {
	Scenario   voice.Scenario `json:"scenario"`
	TargetRole string         `json:"target_role"`
	Company    string         `json:"company"`
	Notes      string         `json:"notes"`
}

// voicePractice has no sensible fallback for a failed platform call: a
// mock session cannot be joined, so upstream errors are hard failures.
// An unconfigured platform yields the labelled mock session.
func (s *Service) voicePractice(c *gin.Context, userID string) (*outcome, error) {
	var req voicePracticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, invalid("Invalid request body")
	}
	if req.Scenario == "" {
		req.Scenario = voice.ScenarioInterview
	}
	if !req.Scenario.Valid() {
		return nil, invalid("unsupported scenario %q", req.Scenario)
	}
	if s.voice == nil {
		return nil, voice.ErrNotConfigured
	}

	sess, err := s.voice.CreateSession(c.Request.Context(), voice.SessionRequest{
		UserID:     userID,
		Scenario:   req.Scenario,
		TargetRole: req.TargetRole,
		Company:    req.Company,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, err
	}
	if sess.Mock {
		return fallback(sess, reasonNotConfigured), nil
	}
	return result(sess), nil
}
