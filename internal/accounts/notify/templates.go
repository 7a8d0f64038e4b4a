package notify

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	VerificationSubject = "Verify your email address"
	ResetSubject        = "Reset your password"
)

// VerificationEmail renders the email carrying a fresh verification code.
func VerificationEmail(to, name, code string, ttl time.Duration) (Message, error) {
	body, err := render("verification.html", map[string]any{
		"Name":      name,
		"Code":      code,
		"ExpiresIn": humanDuration(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: VerificationSubject, HTML: body}, nil
}

// ResetEmail renders the email carrying a password reset link.
func ResetEmail(to, name, url string, ttl time.Duration) (Message, error) {
	body, err := render("reset.html", map[string]any{
		"Name":      name,
		"URL":       url,
		"ExpiresIn": humanDuration(ttl),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: ResetSubject, HTML: body}, nil
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func humanDuration(d time.Duration) string {
	switch {
	case d >= time.Hour && d%time.Hour == 0:
		if d == time.Hour {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", d/time.Hour)
	case d >= time.Minute:
		if d < 2*time.Minute {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", d/time.Minute)
	default:
		return d.String()
	}
}
