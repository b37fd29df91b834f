// Package gateway implements the registration AuthGateway on top of the
// identity backend, the OAuth client and the mailer.
package gateway

import (
	"context"
	"errors"
	"net/url"

	authconfig "github.com/smallbiznis/flowmarket/internal/auth/config"
	authdomain "github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/internal/auth/oauth"
	"github.com/smallbiznis/flowmarket/internal/config"
	"github.com/smallbiznis/flowmarket/internal/observability/logger"
	"github.com/smallbiznis/flowmarket/internal/providers/email"
	"github.com/smallbiznis/flowmarket/internal/registration/consent"
	"github.com/smallbiznis/flowmarket/internal/registration/domain"
	"go.uber.org/zap"
)

const (
	msgUserExists          = "An account with this email already exists"
	msgInvalidCredentials  = "Invalid email or password"
	msgPasswordMismatch    = "Passwords do not match"
	msgSignUpDisabled      = "Sign-up with this provider is disabled"
	msgProviderUnavailable = "Sign-in with this provider is not available"
	msgProviderRejected    = "The provider rejected the sign-in, please try again"
	msgGeneric             = "Registration failed, please try again"

	// PopupClosed is reported when the visitor abandons the consent step.
	PopupClosed = "popup_closed"
)

type Gateway struct {
	log     *zap.Logger
	auth    authdomain.Service
	oauth   oauth.Service
	mailer  email.Provider
	policy  *config.PolicyHolder
	baseURL string
	prompt  consent.Prompt
}

func New(
	log *zap.Logger,
	cfg config.Config,
	auth authdomain.Service,
	oauthSvc oauth.Service,
	mailer email.Provider,
	policy *config.PolicyHolder,
) *Gateway {
	return &Gateway{
		log:     log.Named("registration.gateway"),
		auth:    auth,
		oauth:   oauthSvc,
		mailer:  mailer,
		policy:  policy,
		baseURL: cfg.PublicBaseURL,
	}
}

// WithConsent returns a copy of g that asks prompt for provider consent.
// Each visit gets its own copy.
func (g *Gateway) WithConsent(prompt consent.Prompt) *Gateway {
	clone := *g
	clone.prompt = prompt
	return &clone
}

func (g *Gateway) SignUp(ctx context.Context, fields domain.RegistrationFields) domain.SignUpResult {
	log := logger.WithContext(ctx, g.log)

	res, err := g.auth.CreateUser(ctx, authdomain.CreateUserRequest{
		Email:           fields.Email,
		Password:        fields.Password,
		ConfirmPassword: fields.ConfirmPassword,
		DisplayName:     fields.Name,
	})
	if err != nil {
		return domain.SignUpResult{Err: g.authError(ctx, err)}
	}

	data := email.ConfirmEmailData{
		Name:       res.User.DisplayName,
		Email:      res.User.Email,
		ConfirmURL: g.baseURL + "/auth/confirm?token=" + url.QueryEscape(res.ConfirmationToken),
		ExpiresAt:  res.ConfirmationExpiresAt,
	}
	if err := g.mailer.SendTemplate(ctx, []string{res.User.Email}, email.TemplateConfirmEmail, data); err != nil {
		// the account exists; the visitor can request another confirmation later
		log.Warn("confirmation email not sent",
			zap.String("user_id", res.User.ID.String()),
			zap.Error(err),
		)
	}
	return domain.SignUpResult{}
}

func (g *Gateway) SignInWithProvider(ctx context.Context, providerID string) (*domain.Session, error) {
	provider := authconfig.NormalizeProviderType(providerID)
	if g.prompt == nil {
		logger.WithContext(ctx, g.log).Error("provider sign-in without a consent prompt")
		return nil, domain.NewAuthError(msgProviderUnavailable)
	}
	if !g.policy.Get().ProviderAllowed(provider) {
		return nil, domain.NewAuthError(msgProviderUnavailable)
	}

	redirectURI := g.baseURL + "/auth/callback/" + url.PathEscape(provider)
	redirect, err := g.oauth.RedirectURL(ctx, provider, oauth.RedirectRequest{RedirectURI: redirectURI})
	if err != nil {
		return nil, g.authError(ctx, err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, g.policy.Get().ConsentTTL)
	defer cancel()

	resp, err := g.prompt.Await(waitCtx, consent.Request{
		Provider: provider,
		URL:      redirect.URL,
		State:    redirect.State,
	})
	if err != nil {
		logger.WithContext(ctx, g.log).Info("consent abandoned", zap.String("provider", provider), zap.Error(err))
		return nil, domain.NewAuthError(PopupClosed)
	}
	if resp.Error != "" {
		return nil, domain.NewAuthError(resp.Error)
	}

	login, err := g.oauth.Login(ctx, provider, oauth.LoginRequest{
		Code:         resp.Code,
		RedirectURI:  redirectURI,
		CodeVerifier: redirect.CodeVerifier,
	})
	if err != nil {
		return nil, g.authError(ctx, err)
	}

	client := clientFromContext(ctx)
	result, err := g.auth.LoginWithIdentity(ctx, authdomain.IdentityLoginRequest{
		Provider:    login.ProviderName,
		AllowSignUp: login.AllowSignUp,
		Identity:    login.Identity,
		UserAgent:   client.UserAgent,
		IPAddress:   client.IPAddress,
	})
	if err != nil {
		return nil, g.authError(ctx, err)
	}

	return &domain.Session{
		Token:     result.RawToken,
		Provider:  login.ProviderName,
		ExpiresAt: result.ExpiresAt,
	}, nil
}

func (g *Gateway) authError(ctx context.Context, err error) *domain.AuthError {
	switch {
	case errors.Is(err, authdomain.ErrUserExists):
		return domain.NewAuthError(msgUserExists)
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return domain.NewAuthError(msgInvalidCredentials)
	case errors.Is(err, authdomain.ErrPasswordMismatch):
		return domain.NewAuthError(msgPasswordMismatch)
	case errors.Is(err, authdomain.ErrSignUpDisabled):
		return domain.NewAuthError(msgSignUpDisabled)
	case errors.Is(err, oauth.ErrProviderNotFound), errors.Is(err, oauth.ErrInvalidProvider):
		return domain.NewAuthError(msgProviderUnavailable)
	case errors.Is(err, oauth.ErrUnauthorized), errors.Is(err, oauth.ErrInvalidRequest):
		return domain.NewAuthError(msgProviderRejected)
	default:
		logger.WithContext(ctx, g.log).Error("auth backend failure", zap.Error(err))
		return domain.NewAuthError(msgGeneric)
	}
}

var _ domain.AuthGateway = (*Gateway)(nil)
