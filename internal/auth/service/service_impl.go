package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/internal/auth/password"
	"github.com/smallbiznis/flowmarket/internal/clock"
	"github.com/smallbiznis/flowmarket/internal/config"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	tokenBytes = 32
	sessionTTL = 7 * 24 * time.Hour
)

type Service struct {
	log           *zap.Logger
	repo          domain.Repository
	confirmations domain.ConfirmationRepository
	sessionRepo   domain.SessionRepository
	genID         *snowflake.Node
	clock         clock.Clock
	policy        *config.PolicyHolder
}

func New(
	log *zap.Logger,
	repo domain.Repository,
	confirmations domain.ConfirmationRepository,
	sessionRepo domain.SessionRepository,
	genID *snowflake.Node,
	clk clock.Clock,
	policy *config.PolicyHolder,
) domain.Service {
	return &Service{
		log:           log.Named("auth.service"),
		repo:          repo,
		confirmations: confirmations,
		sessionRepo:   sessionRepo,
		genID:         genID,
		clock:         clk,
		policy:        policy,
	}
}

func (s *Service) CreateUser(ctx context.Context, req domain.CreateUserRequest) (*domain.CreateUserResult, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if len(strings.TrimSpace(req.Password)) < password.MinLength {
		return nil, domain.ErrInvalidCredentials
	}
	if req.Password != req.ConfirmPassword {
		return nil, domain.ErrPasswordMismatch
	}

	if _, err := s.repo.FindOne(ctx, domain.User{
		Email:    email,
		Provider: domain.ProviderLocal,
	}); err == nil {
		return nil, domain.ErrUserExists
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hashed, err := password.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	rawToken, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = defaultDisplayName(email)
	}
	user := &domain.User{
		ID:           s.genID.Generate(),
		ExternalID:   uuid.NewString(),
		Provider:     domain.ProviderLocal,
		DisplayName:  displayName,
		Email:        email,
		PasswordHash: &hashed,
		Metadata:     datatypes.JSONMap{"signup_source": "registration"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	confirmation := &domain.EmailConfirmation{
		ID:        s.genID.Generate(),
		TokenHash: hashToken(rawToken),
		ExpiresAt: now.Add(s.policy.Get().ConfirmationTTL),
		CreatedAt: now,
	}

	if err := s.repo.CreateWithConfirmation(ctx, user, confirmation); err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", user.Provider),
	)

	return &domain.CreateUserResult{
		User:                  user,
		ConfirmationToken:     rawToken,
		ConfirmationExpiresAt: confirmation.ExpiresAt,
	}, nil
}

func (s *Service) ConfirmEmail(ctx context.Context, rawToken string) (*domain.User, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrConfirmationNotFound
	}

	confirmation, err := s.confirmations.FindConfirmationByTokenHash(ctx, hashToken(token))
	if err != nil {
		return nil, err
	}
	if confirmation.ConsumedAt != nil {
		return nil, domain.ErrConfirmationUsed
	}

	now := s.clock.Now()
	if now.After(confirmation.ExpiresAt) {
		return nil, domain.ErrConfirmationExpired
	}

	if err := s.confirmations.ConsumeConfirmation(ctx, confirmation, now); err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, confirmation.UserID)
}

func (s *Service) LoginWithIdentity(ctx context.Context, req domain.IdentityLoginRequest) (*domain.LoginResult, error) {
	provider := strings.ToLower(strings.TrimSpace(req.Provider))
	externalID := strings.TrimSpace(req.Identity.ExternalID)
	if provider == "" || provider == domain.ProviderLocal || externalID == "" {
		return nil, domain.ErrInvalidCredentials
	}
	email, err := normalizeEmail(req.Identity.Email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.repo.FindOne(ctx, domain.User{Provider: provider, ExternalID: externalID})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrUserNotFound):
		if !req.AllowSignUp {
			return nil, domain.ErrSignUpDisabled
		}
		user, err = s.createProviderUser(ctx, provider, externalID, email, req.Identity.DisplayName)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	rawToken, err := newToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	session := &domain.Session{
		ID:               s.genID.Generate(),
		UserID:           user.ID,
		Provider:         provider,
		SessionTokenHash: hashToken(rawToken),
		UserAgent:        strings.TrimSpace(req.UserAgent),
		IPAddress:        strings.TrimSpace(req.IPAddress),
		ExpiresAt:        now.Add(sessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessionRepo.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	return &domain.LoginResult{
		User:      user,
		RawToken:  rawToken,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

func (s *Service) createProviderUser(ctx context.Context, provider, externalID, email, displayName string) (*domain.User, error) {
	now := s.clock.Now()
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = defaultDisplayName(email)
	}
	user := &domain.User{
		ID:              s.genID.Generate(),
		ExternalID:      externalID,
		Provider:        provider,
		DisplayName:     displayName,
		Email:           email,
		EmailVerifiedAt: &now,
		Metadata:        datatypes.JSONMap{"signup_source": "provider"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.log.Info("user registered",
		zap.String("user_id", user.ID.String()),
		zap.String("provider", provider),
	)
	return user, nil
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Session, error) {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if session.RevokedAt != nil {
		return nil, domain.ErrSessionRevoked
	}
	if now.After(session.ExpiresAt) {
		return nil, domain.ErrSessionExpired
	}

	if err := s.sessionRepo.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	session, err := s.lookupSession(ctx, rawToken)
	if err != nil {
		return err
	}
	return s.sessionRepo.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) lookupSession(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}

	session, err := s.sessionRepo.GetSessionByTokenHash(ctx, hashToken(token))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrInvalidSession
	}
	return session, err
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}

func defaultDisplayName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	if strings.TrimSpace(local) != "" {
		return strings.TrimSpace(local)
	}
	return email
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
