package features

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/models"
	"github.com/linkedgrow/dashboard/internal/scraper"
	"github.com/linkedgrow/dashboard/internal/store"
	"go.uber.org/zap"
)

type getNoticedRequest struct {
	Username   string `json:"username"`
	Headline   string `json:"headline"`
	About      string `json:"about"`
	TargetRole string `json:"target_role"`
	Industry   string `json:"industry"`
}

// ProfileSuggestions is the rewrite offered for a LinkedIn profile.
type ProfileSuggestions struct {
	Headline string   `json:"headline"`
	About    string   `json:"about"`
	Keywords []string `json:"keywords"`
	Tips     []string `json:"tips"`
}

type getNoticedResult struct {
	Profile     *scraper.Profile    `json:"profile,omitempty"`
	Suggestions *ProfileSuggestions `json:"suggestions"`
}

const getNoticedSystem = `You are a LinkedIn profile strategist. Rewrite the user's headline (max 220 characters) and About section (max 2000 characters) so recruiters and buyers in their target market find and trust them. Reply with a JSON object: {"headline": string, "about": string, "keywords": [string], "tips": [string]}.`

func (s *Service) getNoticed(c *gin.Context, userID string) (*outcome, error) {
	var req getNoticedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, invalid("Invalid request body")
	}
	ctx := c.Request.Context()

	username := scraper.NormalizeUsername(req.Username)
	if username == "" && s.settings != nil {
		stored, err := s.settings.GetSetting(ctx, userID, models.SettingLinkedInUsername)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		username = stored
	} else if username != "" && s.settings != nil {
		if err := s.settings.SetSetting(ctx, userID, models.SettingLinkedInUsername, username); err != nil {
			s.log.Warn("remember linkedin username failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	if username == "" && req.Headline == "" && req.About == "" {
		return nil, invalid("username, headline or about is required")
	}

	res := &getNoticedResult{}
	if username != "" && s.profiles != nil && s.profiles.Enabled() {
		p, err := s.profiles.Profile(ctx, username)
		if err != nil {
			s.log.Warn("profile scrape failed", zap.String("username", username), zap.Error(err))
		} else {
			res.Profile = p
			if req.Headline == "" {
				req.Headline = p.Headline
			}
			if req.About == "" {
				req.About = p.About
			}
		}
	}

	if !s.llmReady() {
		res.Suggestions = fallbackProfile(req)
		return fallback(res, reasonNotConfigured), nil
	}

	prompt, _ := json.Marshal(map[string]string{
		"current_headline": req.Headline,
		"current_about":    req.About,
		"target_role":      req.TargetRole,
		"industry":         req.Industry,
	})
	var sugg ProfileSuggestions
	if err := s.llm.CompleteJSON(ctx, getNoticedSystem, string(prompt), &sugg); err != nil || sugg.Headline == "" {
		s.log.Warn("profile rewrite failed", zap.String("user_id", userID), zap.Error(err))
		res.Suggestions = fallbackProfile(req)
		return fallback(res, reasonUpstream), nil
	}
	res.Suggestions = &sugg
	return result(res), nil
}

func fallbackProfile(req getNoticedRequest) *ProfileSuggestions {
	role := firstNonEmpty(req.TargetRole, "your target role")
	industry := firstNonEmpty(req.Industry, "your industry")

	headline := fmt.Sprintf("%s | Helping %s teams grow with measurable results", titleCase(role), industry)
	if req.Headline != "" {
		headline = fmt.Sprintf("%s | %s", strings.TrimSpace(req.Headline), "Open to new opportunities")
	}
	return &ProfileSuggestions{
		Headline: headline,
		About: fmt.Sprintf("I work as %s in %s. Lead with the outcome you deliver, back it with two concrete results, "+
			"and close with how people can reach you.", role, industry),
		Keywords: []string{role, industry, "leadership", "growth"},
		Tips: []string{
			"Put your strongest keyword in the first 60 characters of your headline.",
			"Open your About section with a one-line value statement.",
			"Add three featured posts that show your expertise.",
		},
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
