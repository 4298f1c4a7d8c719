package repository

import (
	"bitwise74/otp-auth/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type SessionTokens struct {
	db *gorm.DB
}

func NewSessionTokens(db *gorm.DB) *SessionTokens {
	return &SessionTokens{db: db}
}

func (r *SessionTokens) Create(ctx context.Context, t *model.SessionToken) error {
	return r.db.WithContext(ctx).Create(t).Error
}

func (r *SessionTokens) FindByHash(ctx context.Context, hash string) (*model.SessionToken, error) {
	var t model.SessionToken

	err := r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		First(&t).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &t, nil
}

func (r *SessionTokens) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model.SessionToken{}).
		Error
}

// DeleteByHash removes the record behind a credential. Deleting a record
// that doesn't exist is not an error.
func (r *SessionTokens) DeleteByHash(ctx context.Context, hash string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("token_hash = ?", hash).
		Delete(&model.SessionToken{})

	return res.RowsAffected, res.Error
}

func (r *SessionTokens) DeleteByUser(ctx context.Context, userID uint) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.SessionToken{})

	return res.RowsAffected, res.Error
}

func (r *SessionTokens) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.SessionToken{}).
		Where("id = ?", id).
		UpdateColumn("last_used_at", at).
		Error
}

func (r *SessionTokens) CountByUser(ctx context.Context, userID uint) (int64, error) {
	var n int64

	err := r.db.WithContext(ctx).
		Model(&model.SessionToken{}).
		Where("user_id = ?", userID).
		Count(&n).
		Error

	return n, err
}

// DeleteExpired drops records that carry an expiry before t. Non-expiring
// records are kept.
func (r *SessionTokens) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at IS NOT NULL AND expires_at < ?", t).
		Delete(&model.SessionToken{})

	return res.RowsAffected, res.Error
}
