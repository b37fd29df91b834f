package oauth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	authconfig "github.com/smallbiznis/flowmarket/internal/auth/config"
	authdomain "github.com/smallbiznis/flowmarket/internal/auth/domain"
	obstracing "github.com/smallbiznis/flowmarket/internal/observability/tracing"
)

const (
	secretBytes        = 32
	maxBodyBytes       = 1 << 20
	defaultHTTPTimeout = 10 * time.Second
)

// Claim names tried, in order, when reading a provider's userinfo answer.
var (
	subjectClaims = []string{"sub", "id", "user_id", "uid"}
	emailClaims   = []string{"email"}
	nameClaims    = []string{"name", "display_name", "login", "username", "preferred_username"}
)

// Service runs the authorization-code flow with PKCE against any configured provider.
type Service interface {
	RedirectURL(ctx context.Context, providerName string, req RedirectRequest) (*RedirectResult, error)
	Login(ctx context.Context, providerName string, req LoginRequest) (*LoginResult, error)
}

type RedirectRequest struct {
	RedirectURI string
}

// RedirectResult is the consent URL plus the state and PKCE verifier the
// callback has to present again.
type RedirectResult struct {
	URL          string
	State        string
	CodeVerifier string
}

type LoginRequest struct {
	Code         string
	RedirectURI  string
	CodeVerifier string
}

type LoginResult struct {
	ProviderName string
	AllowSignUp  bool
	Identity     authdomain.Identity
}

type service struct {
	registry   authconfig.AuthProviderRegistry
	httpClient *http.Client
}

func NewService(registry authconfig.AuthProviderRegistry) Service {
	return NewServiceWithClient(registry, &http.Client{Timeout: defaultHTTPTimeout})
}

// NewServiceWithClient uses client for the token and userinfo calls.
func NewServiceWithClient(registry authconfig.AuthProviderRegistry, client *http.Client) Service {
	return &service{
		registry:   registry,
		httpClient: obstracing.WrapHTTPClient(client),
	}
}

func (s *service) RedirectURL(_ context.Context, providerName string, req RedirectRequest) (*RedirectResult, error) {
	cfg, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if blank(cfg.ClientID) || blank(cfg.AuthURL) {
		return nil, ErrInvalidProvider
	}
	if blank(req.RedirectURI) {
		return nil, ErrInvalidRequest
	}

	res := &RedirectResult{}
	if res.State, err = newSecret(); err != nil {
		return nil, err
	}
	if res.CodeVerifier, err = newSecret(); err != nil {
		return nil, err
	}
	if res.URL, err = consentURL(cfg, req.RedirectURI, res.State, res.CodeVerifier); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *service) Login(ctx context.Context, providerName string, req LoginRequest) (*LoginResult, error) {
	cfg, err := s.provider(providerName)
	if err != nil {
		return nil, err
	}
	if blank(req.Code) {
		return nil, ErrInvalidRequest
	}
	if blank(cfg.TokenURL) || blank(cfg.APIURL) {
		return nil, ErrInvalidProvider
	}

	accessToken, err := s.redeem(ctx, cfg, req)
	if err != nil {
		return nil, err
	}
	identity, err := s.userinfo(ctx, cfg, accessToken)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		ProviderName: cfg.Type,
		AllowSignUp:  cfg.AllowSignUp,
		Identity:     identity,
	}, nil
}

// provider resolves an enabled external provider. The local password
// provider never takes part in the redirect flow.
func (s *service) provider(name string) (authconfig.AuthProviderConfig, error) {
	cfg, ok := s.registry.Lookup(name)
	if !ok || !cfg.Enabled || cfg.Type == "local" {
		return authconfig.AuthProviderConfig{}, ErrProviderNotFound
	}
	return cfg, nil
}

func consentURL(cfg authconfig.AuthProviderConfig, redirectURI, state, verifier string) (string, error) {
	u, err := url.Parse(cfg.AuthURL)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(verifier))

	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("code_challenge", base64.RawURLEncoding.EncodeToString(sum[:]))
	q.Set("code_challenge_method", "S256")
	if len(cfg.Scopes) > 0 {
		q.Set("scope", strings.Join(cfg.Scopes, " "))
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redeem trades the authorization code for an access token. Providers that
// answer form-encoded instead of JSON are accepted too.
func (s *service) redeem(ctx context.Context, cfg authconfig.AuthProviderConfig, req LoginRequest) (string, error) {
	form := url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {req.Code},
		"redirect_uri": {req.RedirectURI},
		"client_id":    {cfg.ClientID},
	}
	if !blank(cfg.ClientSecret) {
		form.Set("client_secret", cfg.ClientSecret)
	}
	if !blank(req.CodeVerifier) {
		form.Set("code_verifier", req.CodeVerifier)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := s.call(httpReq)
	if err != nil {
		return "", fmt.Errorf("token endpoint: %w", err)
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if json.Unmarshal(body, &token) == nil && token.AccessToken != "" {
		return token.AccessToken, nil
	}
	if values, err := url.ParseQuery(string(body)); err == nil && values.Get("access_token") != "" {
		return values.Get("access_token"), nil
	}
	return "", ErrUnauthorized
}

func (s *service) userinfo(ctx context.Context, cfg authconfig.AuthProviderConfig, accessToken string) (authdomain.Identity, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.APIURL, nil)
	if err != nil {
		return authdomain.Identity{}, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+accessToken)

	body, err := s.call(httpReq)
	if err != nil {
		return authdomain.Identity{}, fmt.Errorf("userinfo endpoint: %w", err)
	}

	claims := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&claims); err != nil {
		return authdomain.Identity{}, ErrUnauthorized
	}

	identity := authdomain.Identity{
		ExternalID:  claim(claims, subjectClaims),
		Email:       claim(claims, emailClaims),
		DisplayName: claim(claims, nameClaims),
	}
	if identity.ExternalID == "" || identity.Email == "" {
		return authdomain.Identity{}, ErrUnauthorized
	}
	if identity.DisplayName == "" {
		identity.DisplayName = identity.Email
	}
	return identity, nil
}

// call sends req and returns the body of a 2xx answer.
func (s *service) call(req *http.Request) ([]byte, error) {
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	}
	return body, nil
}

func claim(claims map[string]any, names []string) string {
	for _, name := range names {
		switch v := claims[name].(type) {
		case nil:
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		default:
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s
			}
		}
	}
	return ""
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
