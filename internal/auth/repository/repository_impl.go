package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/flowmarket/internal/auth/domain"
	"github.com/smallbiznis/flowmarket/pkg/db"
	"gorm.io/gorm"
)

type repo struct {
	db *gorm.DB
}

func New(conn *gorm.DB) (domain.Repository, domain.ConfirmationRepository, domain.SessionRepository) {
	r := &repo{db: conn}
	return r, r, r
}

func (r *repo) FindOne(ctx context.Context, user domain.User) (*domain.User, error) {
	var u domain.User
	err := r.db.WithContext(ctx).Where(user).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repo) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repo) Create(ctx context.Context, user *domain.User) error {
	return mapDuplicate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *repo) CreateWithConfirmation(ctx context.Context, user *domain.User, confirmation *domain.EmailConfirmation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return mapDuplicate(err)
		}
		confirmation.UserID = user.ID
		return tx.Create(confirmation).Error
	})
}

func (r *repo) FindConfirmationByTokenHash(ctx context.Context, tokenHash string) (*domain.EmailConfirmation, error) {
	var confirmation domain.EmailConfirmation
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&confirmation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrConfirmationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &confirmation, nil
}

func (r *repo) ConsumeConfirmation(ctx context.Context, confirmation *domain.EmailConfirmation, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.EmailConfirmation{}).
			Where("id = ? AND consumed_at IS NULL", confirmation.ID).
			Update("consumed_at", at)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrConfirmationUsed
		}

		res = tx.Model(&domain.User{}).
			Where("id = ?", confirmation.UserID).
			Updates(map[string]any{"email_verified_at": at, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserNotFound
		}
		return nil
	})
}

func (r *repo) CreateSession(ctx context.Context, session *domain.Session) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *repo) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).Where("session_token_hash = ?", tokenHash).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *repo) UpdateLastSeen(ctx context.Context, sessionID snowflake.ID, lastSeen time.Time) error {
	return r.touchSession(ctx, sessionID, "last_seen_at", lastSeen)
}

func (r *repo) RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error {
	return r.touchSession(ctx, sessionID, "revoked_at", revokedAt)
}

func (r *repo) touchSession(ctx context.Context, sessionID snowflake.ID, column string, at time.Time) error {
	tx := r.db.WithContext(ctx).Model(&domain.Session{}).Where("id = ?", sessionID).Update(column, at)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func mapDuplicate(err error) error {
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrUserExists
	}
	return err
}
