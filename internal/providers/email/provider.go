package email

import "context"

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
	SendTemplate(ctx context.Context, to []string, templateName string, data any) error
}

// NoOpProvider drops every message. Used when no SMTP relay is configured.
type NoOpProvider struct{}

func (NoOpProvider) Send(context.Context, []string, string, string) error {
	return nil
}

func (NoOpProvider) SendTemplate(context.Context, []string, string, any) error {
	return nil
}
