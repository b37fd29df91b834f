package email

import (
	"context"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/flowmarket/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSendTemplateRendersConfirmation(t *testing.T) {
	var gotAddr, gotFrom string
	var gotMsg []byte
	p := NewSMTP(Config{Host: "smtp.local", Port: 2525, From: "FlowMarket <no-reply@flowmarket.local>"})
	p.sendMail = func(addr string, _ smtp.Auth, from string, _ []string, msg []byte) error {
		gotAddr, gotFrom, gotMsg = addr, from, msg
		return nil
	}

	err := p.SendTemplate(context.Background(), []string{"a@b.com"}, TemplateConfirmEmail, ConfirmEmailData{
		Name:       "Ann",
		Email:      "a@b.com",
		ConfirmURL: "https://app/auth/confirm?token=abc",
		ExpiresAt:  time.Date(2025, 1, 2, 15, 4, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	msg := string(gotMsg)
	assert.Equal(t, "smtp.local:2525", gotAddr)
	assert.Equal(t, "no-reply@flowmarket.local", gotFrom)
	assert.Contains(t, msg, "Subject: Confirm your FlowMarket account\r\n")
	assert.Contains(t, msg, "https://app/auth/confirm?token=abc")
	assert.Contains(t, msg, "Jan 2, 2025 15:04 UTC")
	assert.True(t, strings.Contains(msg, "Hi Ann,"))
}

func TestSendTemplateUnknown(t *testing.T) {
	p := NewSMTP(Config{Host: "smtp.local", Port: 25})
	err := p.SendTemplate(context.Background(), []string{"a@b.com"}, "missing", nil)
	assert.Error(t, err)
}

func TestSendRequiresRecipients(t *testing.T) {
	assert.Error(t, NewSMTP(Config{}).Send(context.Background(), nil, "s", "b"))
}

func TestNewFromConfig(t *testing.T) {
	assert.IsType(t, NoOpProvider{}, NewFromConfig(config.Config{}, zap.NewNop()))
	assert.IsType(t, &SMTPProvider{}, NewFromConfig(config.Config{Email: config.EmailConfig{SMTPHost: "smtp"}}, zap.NewNop()))
}
