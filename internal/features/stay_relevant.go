package features

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	defaultPostCount = 3
	maxPostCount     = 5
)

type stayRelevantRequest struct {
	Topic    string `json:"topic"`
	Tone     string `json:"tone"`
	Audience string `json:"audience"`
	Count    int    `json:"count"`
}

// PostDraft is one generated LinkedIn post.
type PostDraft struct {
	Hook     string   `json:"hook"`
	Body     string   `json:"body"`
	Hashtags []string `json:"hashtags"`
}

type stayRelevantResult struct {
	Topic string      `json:"topic"`
	Posts []PostDraft `json:"posts"`
}

const stayRelevantSystem = `You write LinkedIn posts that start conversations. Each post has a scroll-stopping first line (the hook), a body under 1300 characters with short paragraphs, and up to five hashtags. Reply with a JSON object: {"posts": [{"hook": string, "body": string, "hashtags": [string]}]}.`

func (s *Service) stayRelevant(c *gin.Context, userID string) (*outcome, error) {
	var req stayRelevantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, invalid("Invalid request body")
	}
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return nil, invalid("topic is required")
	}
	if req.Count == 0 {
		req.Count = defaultPostCount
	}
	if req.Count < 1 || req.Count > maxPostCount {
		return nil, invalid("count must be between 1 and %d", maxPostCount)
	}
	req.Tone = firstNonEmpty(req.Tone, "professional")

	if !s.llmReady() {
		return fallback(fallbackPosts(req), reasonNotConfigured), nil
	}

	prompt, _ := json.Marshal(req)
	var out struct {
		Posts []PostDraft `json:"posts"`
	}
	if err := s.llm.CompleteJSON(c.Request.Context(), stayRelevantSystem, string(prompt), &out); err != nil || len(out.Posts) == 0 {
		s.log.Warn("post generation failed", zap.String("user_id", userID), zap.Error(err))
		return fallback(fallbackPosts(req), reasonUpstream), nil
	}
	if len(out.Posts) > req.Count {
		out.Posts = out.Posts[:req.Count]
	}
	return result(&stayRelevantResult{Topic: req.Topic, Posts: out.Posts}), nil
}

func fallbackPosts(req stayRelevantRequest) *stayRelevantResult {
	hooks := []string{
		"Most people get %s wrong. Here's what I learned.",
		"3 lessons from a year of working on %s.",
		"Unpopular opinion about %s:",
		"If you're starting with %s, read this first.",
		"The one question I ask before any %s decision.",
	}
	tag := "#" + strings.ReplaceAll(titleCase(req.Topic), " ", "")

	res := &stayRelevantResult{Topic: req.Topic}
	for i := 0; i < req.Count; i++ {
		res.Posts = append(res.Posts, PostDraft{
			Hook: fmt.Sprintf(hooks[i%len(hooks)], req.Topic),
			Body: fmt.Sprintf("Share a %s story about %s: the situation, what you tried, what changed, "+
				"and one takeaway your audience can use today. End with a question.", req.Tone, req.Topic),
			Hashtags: []string{tag, "#LinkedIn", "#CareerGrowth"},
		})
	}
	return res
}
