package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*CreateUserResult, error)
	ConfirmEmail(ctx context.Context, rawToken string) (*User, error)
	LoginWithIdentity(ctx context.Context, req IdentityLoginRequest) (*LoginResult, error)
	Authenticate(ctx context.Context, rawToken string) (*Session, error)
	Logout(ctx context.Context, rawToken string) error
}

type CreateUserRequest struct {
	Email           string
	Password        string
	ConfirmPassword string
	DisplayName     string
}

type CreateUserResult struct {
	User *User
	// ConfirmationToken is the raw token; only its hash is stored.
	ConfirmationToken     string
	ConfirmationExpiresAt time.Time
}

type IdentityLoginRequest struct {
	Provider    string
	AllowSignUp bool
	Identity    Identity
	UserAgent   string
	IPAddress   string
}

type LoginResult struct {
	User      *User
	RawToken  string
	ExpiresAt time.Time
	SessionID snowflake.ID
}
