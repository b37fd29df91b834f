// Package domain contains core types for the identity backend.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const ProviderLocal = "local"

// User represents an account created by sign-up or by a provider sign-in.
type User struct {
	ID              snowflake.ID      `gorm:"primaryKey"`
	ExternalID      string            `gorm:"column:external_id;type:text;not null;index"`
	Provider        string            `gorm:"column:provider;type:text;not null;uniqueIndex:ux_users_provider_email"`
	DisplayName     string            `gorm:"column:display_name;type:text"`
	Email           string            `gorm:"column:email;type:text;not null;uniqueIndex:ux_users_provider_email"`
	PasswordHash    *string           `gorm:"column:password_hash;type:text"`
	EmailVerifiedAt *time.Time        `gorm:"column:email_verified_at"`
	Metadata        datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (User) TableName() string { return "users" }

func (u User) Verified() bool { return u.EmailVerifiedAt != nil }

// EmailConfirmation is a single-use token proving ownership of a sign-up email.
type EmailConfirmation struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	UserID     snowflake.ID `gorm:"column:user_id;not null;index"`
	TokenHash  string       `gorm:"column:token_hash;type:text;not null;uniqueIndex"`
	ExpiresAt  time.Time    `gorm:"column:expires_at;not null"`
	ConsumedAt *time.Time   `gorm:"column:consumed_at"`
	CreatedAt  time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

func (EmailConfirmation) TableName() string { return "email_confirmations" }

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	Provider         string       `gorm:"column:provider;type:text;not null"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

func (Session) TableName() string { return "sessions" }

// Models lists the tables owned by this package, in migration order.
func Models() []any {
	return []any{&User{}, &EmailConfirmation{}, &Session{}}
}

// Identity is the verified profile returned by an external provider.
type Identity struct {
	ExternalID  string
	Email       string
	DisplayName string
}
