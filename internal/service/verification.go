package service

import (
	"bitwise74/otp-auth/internal/apperr"
	"bitwise74/otp-auth/internal/model"
	"bitwise74/otp-auth/internal/provider"
	"bitwise74/otp-auth/internal/repository"
	"bitwise74/otp-auth/pkg/util"
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultVerificationTTL   = 10 * time.Minute
	DefaultMaxResendAttempts = 5
	DefaultProviderTimeout   = 10 * time.Second
)

// Purpose tells Initiate which account precondition applies
type Purpose string

const (
	PurposeRegister Purpose = "register"
	PurposeLogin    Purpose = "login"
)

type VerificationStore interface {
	Create(ctx context.Context, v *model.PhoneVerification) error
	DeleteByPhone(ctx context.Context, countryCode, phoneNumber string) (int64, error)
	FindPending(ctx context.Context, countryCode, phoneNumber string) (*model.PhoneVerification, error)
	FindVerified(ctx context.Context, countryCode, phoneNumber string) (*model.PhoneVerification, error)
	IncrementAttempts(ctx context.Context, id uint) error
	RefreshForResend(ctx context.Context, id uint, channel string, jobID *string, expiresAt time.Time) error
	MarkVerified(ctx context.Context, id uint, at time.Time) error
	Delete(ctx context.Context, id uint) error
}

type AccountLookup interface {
	ExistsByPhone(ctx context.Context, countryCode, phoneNumber string) (bool, error)
}

type VerifierOpts struct {
	TTL             time.Duration
	MaxResends      int
	ProviderTimeout time.Duration
	Now             func() time.Time
}

// Verifier drives a phone through initiate -> (resend)* -> verify. It keeps no
// state of its own, the verification record is the only source of truth.
//
// Calls for the same phone are not serialized. Two concurrent Initiate calls
// both delete and then create, so the last one to write wins.
type Verifier struct {
	store      VerificationStore
	accounts   AccountLookup
	dispatcher Dispatcher
	provider   provider.Provider

	ttl             time.Duration
	maxResends      int
	providerTimeout time.Duration
	now             func() time.Time
}

func NewVerifier(s VerificationStore, a AccountLookup, d Dispatcher, p provider.Provider, o VerifierOpts) *Verifier {
	if o.TTL <= 0 {
		o.TTL = DefaultVerificationTTL
	}

	if o.MaxResends <= 0 {
		o.MaxResends = DefaultMaxResendAttempts
	}

	if o.ProviderTimeout <= 0 {
		o.ProviderTimeout = DefaultProviderTimeout
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return &Verifier{
		store:           s,
		accounts:        a,
		dispatcher:      d,
		provider:        p,
		ttl:             o.TTL,
		maxResends:      o.MaxResends,
		providerTimeout: o.ProviderTimeout,
		now:             o.Now,
	}
}

type InitiateInput struct {
	CountryCode string
	PhoneNumber string
	Channel     string
	Purpose     Purpose
}

type InitiateResult struct {
	NormalizedPhone  string
	Channel          string
	ExpiresInMinutes int
	Record           *model.PhoneVerification
}

// Initiate opens a fresh verification window for a phone and queues the code
// delivery. Any earlier record of the phone is dropped first.
func (v *Verifier) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	channel, err := pickChannel(in.Channel)
	if err != nil {
		return nil, err
	}

	exists, err := v.accounts.ExistsByPhone(ctx, in.CountryCode, in.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check if account exists, %w", err)
	}

	switch in.Purpose {
	case PurposeRegister:
		if exists {
			return nil, apperr.New(apperr.Conflict, "An account with this phone number already exists. Please login instead.").
				With("user_exists", true)
		}
	case PurposeLogin:
		if !exists {
			return nil, apperr.New(apperr.NotFound, "No account found with this phone number. Please register first.")
		}
	default:
		return nil, fmt.Errorf("unknown verification purpose %q", in.Purpose)
	}

	normalized := util.NormalizePhone(in.CountryCode, in.PhoneNumber)

	if _, err := v.store.DeleteByPhone(ctx, in.CountryCode, in.PhoneNumber); err != nil {
		return nil, fmt.Errorf("failed to delete old verifications, %w", err)
	}

	jobID, err := v.dispatcher.Enqueue(ctx, TaskSendOTP, SendOTPPayload{
		PhoneNumber: util.E164(in.CountryCode, in.PhoneNumber),
		Channel:     channel,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, fmt.Sprintf("Failed to send %s OTP", channel), err)
	}

	rec := &model.PhoneVerification{
		CountryCode: in.CountryCode,
		PhoneNumber: in.PhoneNumber,
		Channel:     channel,
		JobID:       &jobID,
		ExpiresAt:   v.now().Add(v.ttl),
		Attempts:    0,
	}

	if err := v.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to create verification, %w", err)
	}

	zap.L().Info("Verification initiated",
		zap.String("purpose", string(in.Purpose)),
		zap.String("phone", provider.MaskPhone(normalized)),
		zap.String("channel", channel),
		zap.String("job_id", jobID))

	return &InitiateResult{
		NormalizedPhone:  normalized,
		Channel:          channel,
		ExpiresInMinutes: int(v.ttl / time.Minute),
		Record:           rec,
	}, nil
}

type ResendInput struct {
	CountryCode string
	PhoneNumber string
	Channel     string
}

// Resend queues another delivery for the pending record, possibly over a
// different channel, and restarts its window. A record allows at most
// MaxResends resends over its whole life.
func (v *Verifier) Resend(ctx context.Context, in ResendInput) (*model.PhoneVerification, error) {
	channel, err := pickChannel(in.Channel)
	if err != nil {
		return nil, err
	}

	rec, err := v.pending(ctx, in.CountryCode, in.PhoneNumber)
	if err != nil {
		return nil, err
	}

	if rec.Attempts >= v.maxResends {
		return nil, apperr.New(apperr.RateExceeded, "Maximum resend attempts reached. Please start registration again.")
	}

	if err := v.store.IncrementAttempts(ctx, rec.ID); err != nil {
		return nil, fmt.Errorf("failed to increment attempts, %w", err)
	}
	rec.Attempts++

	jobID, err := v.dispatcher.Enqueue(ctx, TaskSendOTP, SendOTPPayload{
		PhoneNumber: util.E164(in.CountryCode, in.PhoneNumber),
		Channel:     channel,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, fmt.Sprintf("Failed to resend %s OTP", channel), err)
	}

	expiresAt := v.now().Add(v.ttl)
	if err := v.store.RefreshForResend(ctx, rec.ID, channel, &jobID, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to update verification for resend, %w", err)
	}

	rec.Channel = channel
	rec.JobID = &jobID
	rec.ProviderReference = nil
	rec.ExpiresAt = expiresAt

	zap.L().Info("Verification resent",
		zap.String("phone", provider.MaskPhone(util.NormalizePhone(in.CountryCode, in.PhoneNumber))),
		zap.String("channel", channel),
		zap.Int("attempts", rec.Attempts),
		zap.String("job_id", jobID))

	return rec, nil
}

type VerifyInput struct {
	CountryCode string
	PhoneNumber string
	Code        string
}

// Verify asks the provider to check code against the pending record. On
// success the record is marked verified and returned.
func (v *Verifier) Verify(ctx context.Context, in VerifyInput) (*model.PhoneVerification, error) {
	rec, err := v.pending(ctx, in.CountryCode, in.PhoneNumber)
	if err != nil {
		return nil, err
	}

	if rec.IsExpired(v.now()) {
		if err := v.store.Delete(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired verification, %w", err)
		}

		return nil, apperr.New(apperr.Expired, "Verification code has expired. Please request a new one.").
			With("expired", true)
	}

	pctx, cancel := context.WithTimeout(ctx, v.providerTimeout)
	defer cancel()

	res, err := v.provider.Check(pctx, util.E164(in.CountryCode, in.PhoneNumber), in.Code)
	if err != nil {
		return nil, apperr.Wrap(apperr.ProviderUnavailable, "OTP verification is unavailable right now. Please try again later.", err)
	}

	if !res.Approved {
		return nil, apperr.New(apperr.InvalidCode, "Invalid or expired OTP")
	}

	now := v.now()
	if err := v.store.MarkVerified(ctx, rec.ID, now); err != nil {
		// Replaced by a concurrent Initiate while the provider was checking
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "No pending verification found. Please start again.")
		}

		return nil, fmt.Errorf("failed to mark verification as verified, %w", err)
	}

	rec.Verified = true
	rec.VerifiedAt = &now

	zap.L().Info("Phone verified",
		zap.String("phone", provider.MaskPhone(util.NormalizePhone(in.CountryCode, in.PhoneNumber))),
		zap.String("channel", rec.Channel))

	return rec, nil
}

// RequireVerified returns the verified record that proves control of the
// phone. An expired one is deleted and rejected.
func (v *Verifier) RequireVerified(ctx context.Context, countryCode, phoneNumber string) (*model.PhoneVerification, error) {
	rec, err := v.store.FindVerified(ctx, countryCode, phoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.Validation, "Phone number not verified. Please complete OTP verification first.").
				With("phone_verified", false)
		}

		return nil, fmt.Errorf("failed to get verified record, %w", err)
	}

	if rec.IsExpired(v.now()) {
		if err := v.store.Delete(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired verification, %w", err)
		}

		return nil, apperr.New(apperr.Expired, "Phone verification has expired. Please verify your phone again.").
			With("phone_verified", false).
			With("expired", true)
	}

	return rec, nil
}

func (v *Verifier) pending(ctx context.Context, countryCode, phoneNumber string) (*model.PhoneVerification, error) {
	rec, err := v.store.FindPending(ctx, countryCode, phoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "No pending verification found. Please start again.")
		}

		return nil, fmt.Errorf("failed to get pending verification, %w", err)
	}

	return rec, nil
}

// pickChannel defaults to whatsapp like the public endpoints do
func pickChannel(c string) (string, error) {
	if c == "" {
		return model.ChannelWhatsApp, nil
	}

	if !model.ValidChannel(c) {
		return "", apperr.New(apperr.Validation, "Channel must be either sms or whatsapp")
	}

	return c, nil
}
