package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/flowmarket/internal/clock"
	"github.com/smallbiznis/flowmarket/internal/config"
)

const DefaultCookieName = "_sid"

// Manager writes the authenticated session cookie after a provider sign-in.
type Manager struct {
	cookieName string
	secure     bool
	clock      clock.Clock
}

func NewManager(cfg config.Config, clk clock.Clock) *Manager {
	return &Manager{
		cookieName: DefaultCookieName,
		secure:     cfg.AuthCookieSecure,
		clock:      clk,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

func (m *Manager) ReadToken(c *gin.Context) (string, bool) {
	token, err := c.Cookie(m.cookieName)
	if err != nil || strings.TrimSpace(token) == "" {
		return "", false
	}
	return token, true
}

func (m *Manager) Set(c *gin.Context, value string, expiresAt time.Time) {
	maxAge := int(expiresAt.Sub(m.clock.Now()).Seconds())
	if maxAge <= 0 {
		m.Clear(c)
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, value, maxAge, "/", "", m.secure, true)
}

func (m *Manager) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(m.cookieName, "", -1, "/", "", m.secure, true)
}
