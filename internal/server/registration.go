package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/internal/observability/logger"
	"github.com/smallbiznis/flowmarket/internal/registration"
	"github.com/smallbiznis/flowmarket/internal/registration/consent"
	regdomain "github.com/smallbiznis/flowmarket/internal/registration/domain"
	"github.com/smallbiznis/flowmarket/internal/registration/gateway"
	"go.uber.org/zap"
)

type RegistrationView struct {
	Status           string `json:"status"`
	Error            string `json:"error,omitempty"`
	Email            string `json:"email,omitempty"`
	Path             string `json:"path,omitempty"`
	Redirect         string `json:"redirect,omitempty"`
	AuthorizationURL string `json:"authorization_url,omitempty"`
	Authenticated    bool   `json:"authenticated,omitempty"`
}

// GetRegistration reports the visit's state. A visitor who already holds a
// live session is pointed at the authenticated home instead.
func (s *Server) GetRegistration(c *gin.Context) {
	view := s.registrationView(flowFrom(c))
	if s.signedIn(c) {
		view.Authenticated = true
		if home, ok := s.routes.Path(regdomain.RouteAuthenticatedHome); ok {
			view.Redirect = home
		}
	}
	c.JSON(http.StatusOK, view)
}

// SetRegistrationFields accepts either {"field","value"} or a map of
// field name to value. Nothing is written when any name is unknown.
func (s *Server) SetRegistrationFields(c *gin.Context) {
	flow := flowFrom(c)

	var body map[string]string
	if err := c.ShouldBindJSON(&body); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	updates := body
	if field, ok := body["field"]; ok {
		updates = map[string]string{field: body["value"]}
	}
	if len(updates) == 0 {
		AbortWithError(c, invalidRequestError())
		return
	}

	for name := range updates {
		if !knownField(name) {
			AbortWithError(c, newValidationError(name, "unknown_field", regdomain.ErrUnknownField.Error()))
			return
		}
	}
	for name, value := range updates {
		if err := flow.Controller.SetField(regdomain.Field(name), value); err != nil {
			AbortWithError(c, newValidationError(name, "unknown_field", err.Error()))
			return
		}
	}

	c.JSON(http.StatusOK, s.registrationView(flow))
}

func (s *Server) SubmitCredentials(c *gin.Context) {
	flow := flowFrom(c)
	ctx := context.WithoutCancel(s.clientContext(c))

	if !flow.Controller.SubmitWithCredentials(ctx) {
		AbortWithError(c, droppedError(flow))
		return
	}
	c.JSON(http.StatusAccepted, s.registrationView(flow))
}

// SubmitProvider starts a provider sign-in and answers as soon as the
// visitor has to approve it, or with the outcome if it ended earlier.
func (s *Server) SubmitProvider(c *gin.Context) {
	flow := flowFrom(c)
	provider := strings.TrimSpace(c.Param("provider"))
	run := flow.StartProvider(s.clientContext(c), provider)

	select {
	case req := <-flow.Consent.Prompted():
		view := s.registrationView(flow)
		view.AuthorizationURL = req.URL
		c.JSON(http.StatusAccepted, view)
	case <-run.Done():
		if !run.Accepted() {
			AbortWithError(c, droppedError(flow))
			return
		}
		c.JSON(http.StatusOK, s.registrationView(flow))
	case <-c.Request.Context().Done():
		AbortWithError(c, c.Request.Context().Err())
	}
}

// ProviderCallback hands the provider's answer to the waiting sign-in and
// redirects once it has an outcome.
func (s *Server) ProviderCallback(c *gin.Context) {
	flow := flowFrom(c)
	log := logger.WithContext(c.Request.Context(), s.log)

	run := flow.CurrentRun()
	resp := consent.Response{
		Code:  strings.TrimSpace(c.Query("code")),
		Error: strings.TrimSpace(c.Query("error")),
	}
	if err := flow.Consent.Deliver(strings.TrimSpace(c.Query("state")), resp); err != nil {
		log.Warn("provider callback without pending consent",
			zap.String("provider", c.Param("provider")),
			zap.Error(err),
		)
		c.Redirect(http.StatusFound, s.routes.RegisterPath())
		return
	}

	if run != nil {
		select {
		case <-run.Done():
		case <-c.Request.Context().Done():
			return
		}
	}

	state := flow.Controller.State()
	if state.Status != regdomain.StatusSucceeded || state.Path != regdomain.PathProvider {
		c.Redirect(http.StatusFound, s.routes.RegisterPath())
		return
	}

	if session := flow.Controller.Session(); session != nil && session.Token != "" {
		s.sessions.Set(c, session.Token, session.ExpiresAt)
	}
	c.Redirect(http.StatusFound, s.redirectPath(flow))
}

func (s *Server) AcknowledgeRegistration(c *gin.Context) {
	flow := flowFrom(c)
	if err := flow.Controller.Acknowledge(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.registrationView(flow))
}

// Logout revokes the session cookie's session. Unknown or already revoked
// sessions only have their cookie cleared.
func (s *Server) Logout(c *gin.Context) {
	token, ok := s.sessions.ReadToken(c)
	if ok {
		err := s.authsvc.Logout(c.Request.Context(), token)
		if err != nil && !errors.Is(err, authdomain.ErrInvalidSession) {
			AbortWithError(c, err)
			return
		}
	}
	s.sessions.Clear(c)
	c.Status(http.StatusNoContent)
}

func (s *Server) ConfirmEmail(c *gin.Context) {
	user, err := s.authsvc.ConfirmEmail(c.Request.Context(), c.Query("token"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	signIn := ""
	if path, ok := s.routes.Path(regdomain.RouteSignIn); ok {
		signIn = path
	}
	c.JSON(http.StatusOK, gin.H{
		"email":    user.Email,
		"verified": true,
		"redirect": signIn,
	})
}

func (s *Server) registrationView(flow *registration.Flow) RegistrationView {
	state := flow.Controller.State()
	view := RegistrationView{
		Status:   string(state.Status),
		Error:    state.Err,
		Path:     string(state.Path),
		Redirect: s.redirectPath(flow),
	}
	if state.AwaitingAcknowledgment() {
		view.Email = flow.Controller.DisplayEmail()
	}
	if req, ok := flow.Consent.Pending(); ok {
		view.AuthorizationURL = req.URL
	}
	return view
}

func (s *Server) signedIn(c *gin.Context) bool {
	token, ok := s.sessions.ReadToken(c)
	if !ok {
		return false
	}
	if _, err := s.authsvc.Authenticate(c.Request.Context(), token); err != nil {
		logger.WithContext(c.Request.Context(), s.log).Debug("session cookie rejected", zap.Error(err))
		s.sessions.Clear(c)
		return false
	}
	return true
}

func (s *Server) redirectPath(flow *registration.Flow) string {
	route, ok := flow.Navigator.Last()
	if !ok {
		return ""
	}
	path, _ := s.routes.Path(route)
	return path
}

func (s *Server) clientContext(c *gin.Context) context.Context {
	return gateway.WithClient(c.Request.Context(), gateway.ClientInfo{
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
}

func droppedError(flow *registration.Flow) error {
	if flow.Controller.State().Status == regdomain.StatusSubmitting {
		return regdomain.ErrSubmissionInFlight
	}
	return ErrConflict
}

func knownField(name string) bool {
	for _, f := range regdomain.Fields {
		if string(f) == name {
			return true
		}
	}
	return false
}
