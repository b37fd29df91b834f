package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Repository interface {
	FindOne(ctx context.Context, user User) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	Create(ctx context.Context, user *User) error
	// CreateWithConfirmation stores an unverified user together with its confirmation token.
	CreateWithConfirmation(ctx context.Context, user *User, confirmation *EmailConfirmation) error
}

type ConfirmationRepository interface {
	FindConfirmationByTokenHash(ctx context.Context, tokenHash string) (*EmailConfirmation, error)
	// ConsumeConfirmation marks the token used and the owning user verified in one transaction.
	ConsumeConfirmation(ctx context.Context, confirmation *EmailConfirmation, at time.Time) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
}
