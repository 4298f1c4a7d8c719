// Package repository contains the gorm backed stores used by the services
package repository

import (
	"bitwise74/otp-auth/internal/model"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups that matched no row
var ErrNotFound = errors.New("record not found")

type Verifications struct {
	db *gorm.DB
}

func NewVerifications(db *gorm.DB) *Verifications {
	return &Verifications{db: db}
}

// WithTx returns a store bound to tx so writes can join a caller's transaction
func (r *Verifications) WithTx(tx *gorm.DB) *Verifications {
	return &Verifications{db: tx}
}

func (r *Verifications) Create(ctx context.Context, v *model.PhoneVerification) error {
	return r.db.WithContext(ctx).Create(v).Error
}

// DeleteByPhone removes every record of a phone, verified or not
func (r *Verifications) DeleteByPhone(ctx context.Context, countryCode, phoneNumber string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("country_code = ? AND phone_number = ?", countryCode, phoneNumber).
		Delete(&model.PhoneVerification{})

	return res.RowsAffected, res.Error
}

// FindPending returns the most recently created unverified record of a phone
func (r *Verifications) FindPending(ctx context.Context, countryCode, phoneNumber string) (*model.PhoneVerification, error) {
	return r.findLatest(ctx, countryCode, phoneNumber, false)
}

// FindVerified returns the most recently created verified record of a phone
func (r *Verifications) FindVerified(ctx context.Context, countryCode, phoneNumber string) (*model.PhoneVerification, error) {
	return r.findLatest(ctx, countryCode, phoneNumber, true)
}

func (r *Verifications) findLatest(ctx context.Context, countryCode, phoneNumber string, verified bool) (*model.PhoneVerification, error) {
	var v model.PhoneVerification

	err := r.db.WithContext(ctx).
		Where("country_code = ? AND phone_number = ? AND verified = ?", countryCode, phoneNumber, verified).
		Order("created_at desc").
		Order("id desc").
		First(&v).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}

		return nil, err
	}

	return &v, nil
}

func (r *Verifications) IncrementAttempts(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&model.PhoneVerification{}).
		Where("id = ?", id).
		UpdateColumn("attempts", gorm.Expr("attempts + ?", 1)).
		Error
}

// RefreshForResend points the record at a new send without touching attempts
func (r *Verifications) RefreshForResend(ctx context.Context, id uint, channel string, jobID *string, expiresAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.PhoneVerification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"channel":            channel,
			"job_id":             jobID,
			"provider_reference": nil,
			"expires_at":         expiresAt,
		}).
		Error
}

// MarkVerified flips a pending record to verified. ErrNotFound means the row
// is gone or was verified already, so verified_at is stamped only once.
func (r *Verifications) MarkVerified(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.PhoneVerification{}).
		Where("id = ? AND verified = ?", id, false).
		Updates(map[string]any{
			"verified":    true,
			"verified_at": at,
		})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Verifications) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.PhoneVerification{}, id).Error
}

func (r *Verifications) CountByPhone(ctx context.Context, countryCode, phoneNumber string) (int64, error) {
	var n int64

	err := r.db.WithContext(ctx).
		Model(&model.PhoneVerification{}).
		Where("country_code = ? AND phone_number = ?", countryCode, phoneNumber).
		Count(&n).
		Error

	return n, err
}

// DeleteExpired drops records whose window closed before t
func (r *Verifications) DeleteExpired(ctx context.Context, t time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", t).
		Delete(&model.PhoneVerification{})

	return res.RowsAffected, res.Error
}
