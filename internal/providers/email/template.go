package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"
)

const TemplateConfirmEmail = "confirm_email"

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var subjects = map[string]string{
	TemplateConfirmEmail: "Confirm your FlowMarket account",
}

// ConfirmEmailData feeds the confirm_email template.
type ConfirmEmailData struct {
	Name       string
	Email      string
	ConfirmURL string
	ExpiresAt  time.Time
}

func render(templateName string, data any) (subject string, body string, err error) {
	tmpl := templates.Lookup(templateName + ".html")
	if tmpl == nil {
		return "", "", fmt.Errorf("unknown email template %q", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", "", fmt.Errorf("failed to execute template: %w", err)
	}

	subject = subjects[templateName]
	if subject == "" {
		subject = "Notification from FlowMarket"
	}
	return subject, buf.String(), nil
}
