// Package pages serves the HTML shells the dashboard front end mounts into.
// Every shell behind a session goes through the same gates as the API.
package pages

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/linkedgrow/dashboard/internal/auth"
	"github.com/linkedgrow/dashboard/internal/onboarding"
	"go.uber.org/zap"
)

var shell = template.Must(template.New("shell").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} | LinkedGrow</title>
</head>
<body>
<div id="app" data-page="{{.Page}}"{{if .UserID}} data-user-id="{{.UserID}}"{{end}}></div>
<script type="module" src="/static/app.js"></script>
</body>
</html>
`))

var onboardingSteps = map[string]string{
	"role":      "Your role",
	"discovery": "How you found us",
	"terms":     "Terms",
}

type shellData struct {
	Title  string
	Page   string
	UserID string
}

type Handler struct {
	gate     *onboarding.Gate
	sessions auth.SessionStore
	log      *zap.Logger
}

func New(gate *onboarding.Gate, sessions auth.SessionStore, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{gate: gate, sessions: sessions, log: log}
}

// Register mounts the page routes on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/dashboard") })
	r.GET(auth.LoginPath, h.Login)

	ob := r.Group("/onboarding", auth.RequirePageSession(h.sessions))
	ob.GET("/:step", h.OnboardingStep)

	dash := r.Group("/dashboard", auth.RequirePageSession(h.sessions), h.gate.RequireComplete())
	dash.GET("", h.Dashboard)
	dash.GET("/*path", h.Dashboard)
}

// Login renders the sign-in shell, or sends a signed-in visitor onward.
func (h *Handler) Login(c *gin.Context) {
	if _, err := h.sessions.Resolve(c); err == nil {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	h.render(c, shellData{Title: "Sign in", Page: "login"})
}

// OnboardingStep renders one step. Completed users go to the dashboard
// since COMPLETE is terminal.
func (h *Handler) OnboardingStep(c *gin.Context) {
	step := c.Param("step")
	title, ok := onboardingSteps[step]
	if !ok {
		c.Redirect(http.StatusFound, onboarding.PathRole)
		return
	}

	status, err := h.gate.GetStatus(c.Request.Context(), auth.UserID(c))
	if err != nil {
		h.log.Error("onboarding page status failed", zap.String("user_id", auth.UserID(c)), zap.Error(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if status.IsComplete {
		c.Redirect(http.StatusFound, "/dashboard")
		return
	}
	h.render(c, shellData{Title: title, Page: "onboarding/" + step, UserID: auth.UserID(c)})
}

// Dashboard renders the app shell for /dashboard and its sub-pages.
func (h *Handler) Dashboard(c *gin.Context) {
	page := "dashboard"
	if sub := strings.Trim(c.Param("path"), "/"); sub != "" {
		page += "/" + sub
	}
	h.render(c, shellData{Title: "Dashboard", Page: page, UserID: auth.UserID(c)})
}

func (h *Handler) render(c *gin.Context, data shellData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := shell.Execute(c.Writer, data); err != nil {
		h.log.Error("render page failed", zap.String("page", data.Page), zap.Error(err))
	}
}
