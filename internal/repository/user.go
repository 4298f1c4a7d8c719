package repository

import (
	"bitwise74/otp-auth/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Users struct {
	db *gorm.DB
}

func NewUsers(db *gorm.DB) *Users {
	return &Users{db: db}
}

func (r *Users) WithTx(tx *gorm.DB) *Users {
	return &Users{db: tx}
}

func (r *Users) Create(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Users) FindByID(ctx context.Context, id uint) (*model.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *Users) FindByPhone(ctx context.Context, countryCode, phoneNumber string) (*model.User, error) {
	return r.first(ctx, "country_code = ? AND phone_number = ?", countryCode, phoneNumber)
}

// ExistsByPhone reports whether an account is bound to the phone
func (r *Users) ExistsByPhone(ctx context.Context, countryCode, phoneNumber string) (bool, error) {
	var n int64

	err := r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("country_code = ? AND phone_number = ?", countryCode, phoneNumber).
		Count(&n).
		Error

	return n > 0, err
}

// FindConflict returns the first user that already owns the email, the
// username or the phone.
func (r *Users) FindConflict(ctx context.Context, email, username, countryCode, phoneNumber string) (*model.User, error) {
	return r.first(ctx,
		"email = ? OR username = ? OR (country_code = ? AND phone_number = ?)",
		email, username, countryCode, phoneNumber)
}

func (r *Users) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		UpdateColumn("last_login_at", at).
		Error
}

func (r *Users) first(ctx context.Context, query string, args ...any) (*model.User, error) {
	var u model.User

	err := r.db.WithContext(ctx).Where(query, args...).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &u, nil
}
