package features

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxProspects = 25

type Prospect struct {
	Name    string `json:"name"`
	Title   string `json:"title"`
	Company string `json:"company"`
	Notes   string `json:"notes,omitempty"`
}

type beChosenRequest struct {
	Prospects []Prospect `json:"prospects"`
	Offer     string     `json:"offer"`
}

// CRMEntry is a prospect enriched for outreach.
type CRMEntry struct {
	Name            string `json:"name"`
	Title           string `json:"title"`
	Company         string `json:"company"`
	Stage           string `json:"stage"`
	Priority        string `json:"priority"`
	OutreachMessage string `json:"outreach_message"`
	FollowUp        string `json:"follow_up"`
}

type beChosenResult struct {
	Entries []CRMEntry `json:"entries"`
}

const beChosenSystem = `You build a lightweight CRM for LinkedIn outreach. For each prospect return a priority (high, medium or low) based on fit with the offer, a personalised connection message under 300 characters, and a follow-up message for one week later. Reply with a JSON object: {"entries": [{"name": string, "title": string, "company": string, "priority": string, "outreach_message": string, "follow_up": string}]}.`

func (s *Service) beChosen(c *gin.Context, userID string) (*outcome, error) {
	var req beChosenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, invalid("Invalid request body")
	}
	if len(req.Prospects) == 0 {
		return nil, invalid("prospects is required")
	}
	if len(req.Prospects) > maxProspects {
		return nil, invalid("at most %d prospects per request", maxProspects)
	}
	for i, p := range req.Prospects {
		if strings.TrimSpace(p.Name) == "" {
			return nil, invalid("prospects[%d].name is required", i)
		}
	}

	if !s.llmReady() {
		return fallback(fallbackCRM(req), reasonNotConfigured), nil
	}

	prompt, _ := json.Marshal(req)
	var out beChosenResult
	if err := s.llm.CompleteJSON(c.Request.Context(), beChosenSystem, string(prompt), &out); err != nil || len(out.Entries) == 0 {
		s.log.Warn("crm build failed", zap.String("user_id", userID), zap.Error(err))
		return fallback(fallbackCRM(req), reasonUpstream), nil
	}
	for i := range out.Entries {
		out.Entries[i].Stage = "new"
		out.Entries[i].Priority = normalizePriority(out.Entries[i].Priority)
	}
	return result(&out), nil
}

func normalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case "high":
		return "high"
	case "low":
		return "low"
	default:
		return "medium"
	}
}

func fallbackCRM(req beChosenRequest) *beChosenResult {
	offer := firstNonEmpty(req.Offer, "what I'm working on")
	res := &beChosenResult{Entries: make([]CRMEntry, 0, len(req.Prospects))}
	for _, p := range req.Prospects {
		first := strings.Fields(p.Name)[0]
		company := firstNonEmpty(p.Company, "your team")
		res.Entries = append(res.Entries, CRMEntry{
			Name:     p.Name,
			Title:    p.Title,
			Company:  p.Company,
			Stage:    "new",
			Priority: "medium",
			OutreachMessage: fmt.Sprintf("Hi %s, I came across your work at %s and thought %s might be relevant. "+
				"Open to connecting?", first, company, offer),
			FollowUp: fmt.Sprintf("Hi %s, following up on my note last week. Happy to share a quick example if useful.", first),
		})
	}
	return res
}
