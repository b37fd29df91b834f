package email

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg      Config
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, sendMail: smtp.SendMail}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return errors.New("email: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", p.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	return p.sendMail(addr, auth, envelopeAddress(p.cfg.From), to, []byte(msg.String()))
}

func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data any) error {
	subject, body, err := render(templateName, data)
	if err != nil {
		return err
	}
	return p.Send(ctx, to, subject, body)
}

// envelopeAddress strips a display name: "FlowMarket <no-reply@x>" -> "no-reply@x".
func envelopeAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return from[start+1 : end]
		}
	}
	return strings.TrimSpace(from)
}
