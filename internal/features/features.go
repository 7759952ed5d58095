// Package features serves the metered growth tools: profile optimisation,
// content generation, CRM build and voice practice. Every tool runs behind
// the same quota contract (see metered).
package features

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/scraper"
	"github.com/linkedgrow/dashboard/internal/store"
	"github.com/linkedgrow/dashboard/internal/usage"
	"github.com/linkedgrow/dashboard/internal/voice"
	"go.uber.org/zap"
)

// Feature ids, shared with the billing catalog.
const (
	FeatureGetNoticed    = "get-noticed"
	FeatureStayRelevant  = "stay-relevant"
	FeatureBeChosen      = "be-chosen"
	FeatureVoicePractice = "voice-practice"
)

// Completer produces structured LLM output.
type Completer interface {
	Enabled() bool
	CompleteJSON(ctx context.Context, system, user string, out any) error
}

// ProfileSource looks up public LinkedIn profiles.
type ProfileSource interface {
	Enabled() bool
	Profile(ctx context.Context, username string) (*scraper.Profile, error)
}

// SessionCreator starts voice practice calls.
type SessionCreator interface {
	CreateSession(ctx context.Context, req voice.SessionRequest) (*voice.Session, error)
}

type Service struct {
	meter    *usage.Meter
	llm      Completer
	profiles ProfileSource
	voice    SessionCreator
	settings store.Settings
	log      *zap.Logger
}

type Deps struct {
	Meter    *usage.Meter
	LLM      Completer
	Profiles ProfileSource
	Voice    SessionCreator
	Settings store.Settings
	Log      *zap.Logger
}

func NewService(d Deps) *Service {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		meter:    d.Meter,
		llm:      d.LLM,
		profiles: d.Profiles,
		voice:    d.Voice,
		settings: d.Settings,
		log:      log.Named("features"),
	}
}

// Register mounts the tools on a session-protected group.
func (s *Service) Register(rg *gin.RouterGroup) {
	rg.POST("/get-noticed", s.HandleGetNoticed())
	rg.POST("/stay-relevant", s.HandleStayRelevant())
	rg.POST("/be-chosen", s.HandleBeChosen())
	rg.POST("/crm-build", s.HandleBeChosen())
	rg.POST("/voice-practice", s.HandleVoicePractice())
}

func (s *Service) HandleGetNoticed() gin.HandlerFunc {
	return s.metered(FeatureGetNoticed, s.getNoticed)
}

func (s *Service) HandleStayRelevant() gin.HandlerFunc {
	return s.metered(FeatureStayRelevant, s.stayRelevant)
}

func (s *Service) HandleBeChosen() gin.HandlerFunc {
	return s.metered(FeatureBeChosen, s.beChosen)
}

func (s *Service) HandleVoicePractice() gin.HandlerFunc {
	return s.metered(FeatureVoicePractice, s.voicePractice)
}

func (s *Service) llmReady() bool {
	return s.llm != nil && s.llm.Enabled()
}
