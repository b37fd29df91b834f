package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type fixture struct {
	users         domain.Repository
	confirmations domain.ConfirmationRepository
	sessions      domain.SessionRepository
	node          *snowflake.Node
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(domain.Models()...))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	users, confirmations, sessions := New(conn)
	return fixture{users: users, confirmations: confirmations, sessions: sessions, node: node}
}

func (f fixture) user(email string) *domain.User {
	return &domain.User{
		ID:         f.node.Generate(),
		ExternalID: "ext-" + email,
		Provider:   domain.ProviderLocal,
		Email:      email,
		Metadata:   datatypes.JSONMap{},
	}
}

func TestCreateWithConfirmationRejectsDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expires := time.Now().Add(time.Hour)

	err := f.users.CreateWithConfirmation(ctx, f.user("a@b.com"), &domain.EmailConfirmation{
		ID: f.node.Generate(), TokenHash: "h1", ExpiresAt: expires,
	})
	require.NoError(t, err)

	err = f.users.CreateWithConfirmation(ctx, f.user("a@b.com"), &domain.EmailConfirmation{
		ID: f.node.Generate(), TokenHash: "h2", ExpiresAt: expires,
	})
	assert.ErrorIs(t, err, domain.ErrUserExists)

	// the failed transaction must not leave a dangling token
	_, err = f.confirmations.FindConfirmationByTokenHash(ctx, "h2")
	assert.ErrorIs(t, err, domain.ErrConfirmationNotFound)
}

func TestSameEmailAllowedAcrossProviders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.users.Create(ctx, f.user("a@b.com")))

	google := f.user("a@b.com")
	google.Provider = "google"
	assert.NoError(t, f.users.Create(ctx, google))
}

func TestConsumeConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user := f.user("c@d.com")
	confirmation := &domain.EmailConfirmation{ID: f.node.Generate(), TokenHash: "tok", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, f.users.CreateWithConfirmation(ctx, user, confirmation))
	assert.Equal(t, user.ID, confirmation.UserID)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, f.confirmations.ConsumeConfirmation(ctx, confirmation, at))

	stored, err := f.users.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.Verified())

	err = f.confirmations.ConsumeConfirmation(ctx, confirmation, at)
	assert.ErrorIs(t, err, domain.ErrConfirmationUsed)
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.sessions.GetSessionByTokenHash(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	session := &domain.Session{
		ID:               f.node.Generate(),
		UserID:           f.node.Generate(),
		Provider:         "google",
		SessionTokenHash: "hash",
		ExpiresAt:        time.Now().Add(time.Hour),
	}
	require.NoError(t, f.sessions.CreateSession(ctx, session))

	now := time.Now().UTC()
	require.NoError(t, f.sessions.RevokeSession(ctx, session.ID, now))

	stored, err := f.sessions.GetSessionByTokenHash(ctx, "hash")
	require.NoError(t, err)
	assert.NotNil(t, stored.RevokedAt)

	assert.ErrorIs(t, f.sessions.UpdateLastSeen(ctx, f.node.Generate(), now), domain.ErrSessionNotFound)
}
