package email

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

var resetTmpl = template.Must(template.New("reset").Parse(`<p>Hi,</p>
<p>We received a request to reset your password. The link below is valid for {{.TTL}}.</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>If you did not ask for this you can ignore this email.</p>`))

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<p>Welcome{{if .Name}}, {{.Name}}{{end}}!</p>
<p>Your profile is set up. Head to your <a href="{{.Link}}">dashboard</a> to start growing on LinkedIn.</p>`))

// PasswordReset builds the reset email for link.
func PasswordReset(to, link string, ttl time.Duration) (Message, error) {
	html, err := render(resetTmpl, map[string]any{"Link": link, "TTL": humanize(ttl)})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Reset your password",
		HTML:    html,
		Text:    fmt.Sprintf("Reset your password (valid for %s): %s", humanize(ttl), link),
	}, nil
}

// Welcome builds the post-onboarding welcome email.
func Welcome(to, name, dashboardURL string) (Message, error) {
	html, err := render(welcomeTmpl, map[string]any{"Name": name, "Link": dashboardURL})
	if err != nil {
		return Message{}, err
	}
	return Message{
		To:      to,
		Subject: "Welcome aboard",
		HTML:    html,
		Text:    fmt.Sprintf("Welcome! Your dashboard: %s", dashboardURL),
	}, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func humanize(d time.Duration) string {
	if d >= time.Hour && d%time.Hour == 0 {
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	}
	return d.String()
}
