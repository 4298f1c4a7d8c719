package service

import (
	"bitwise74/otp-auth/internal/apperr"
	"bitwise74/otp-auth/internal/model"
	"bitwise74/otp-auth/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Auth binds verified phones to accounts. It owns registration, phone login
// and the session endpoints built on top of Sessions.
type Auth struct {
	db       *gorm.DB
	users    *repository.Users
	verifs   *repository.Verifications
	verifier *Verifier
	sessions *Sessions

	sessionTTL time.Duration
	now        func() time.Time
}

type AuthOpts struct {
	SessionTTL time.Duration
	Now        func() time.Time
}

func NewAuth(db *gorm.DB, v *Verifier, s *Sessions, o AuthOpts) *Auth {
	if o.SessionTTL <= 0 {
		o.SessionTTL = DefaultSessionTTL
	}

	if o.Now == nil {
		o.Now = time.Now
	}

	return &Auth{
		db:         db,
		users:      repository.NewUsers(db),
		verifs:     repository.NewVerifications(db),
		verifier:   v,
		sessions:   s,
		sessionTTL: o.SessionTTL,
		now:        o.Now,
	}
}

type RegisterInput struct {
	FirstName   string
	LastName    string
	Username    string
	Email       string
	CountryCode string
	PhoneNumber string
	Avatar      *string
	Bio         *string
}

// AuthResult is what a completed registration or login hands back. Token is
// the only copy of the credential.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates an account for a phone that was verified beforehand. The
// verification record is consumed in the same transaction as the insert.
func (a *Auth) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	rec, err := a.verifier.RequireVerified(ctx, in.CountryCode, in.PhoneNumber)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))

	existing, err := a.users.FindConflict(ctx, email, in.Username, in.CountryCode, in.PhoneNumber)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check for existing users, %w", err)
	}

	if existing != nil {
		switch {
		case existing.Email == email:
			return nil, apperr.New(apperr.Conflict, "Email is already registered")
		case existing.Username == in.Username:
			return nil, apperr.New(apperr.Conflict, "Username is already taken")
		default:
			return nil, apperr.New(apperr.Conflict, "Phone number is already registered")
		}
	}

	u := &model.User{
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		DisplayName:     strings.TrimSpace(in.FirstName + " " + in.LastName),
		Username:        in.Username,
		Email:           email,
		CountryCode:     in.CountryCode,
		PhoneNumber:     in.PhoneNumber,
		PhoneVerified:   true,
		PhoneVerifiedAt: rec.VerifiedAt,
		Avatar:          in.Avatar,
		Bio:             in.Bio,
		Status:          model.UserStatusActive,
	}

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.users.WithTx(tx).Create(ctx, u); err != nil {
			return fmt.Errorf("failed to create user, %w", err)
		}

		if err := a.verifs.WithTx(tx).Delete(ctx, rec.ID); err != nil {
			return fmt.Errorf("failed to consume verification, %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	issued, err := a.sessions.Issue(ctx, u.ID, DefaultSessionName, a.sessionTTL)
	if err != nil {
		return nil, err
	}

	zap.L().Info("User registered", zap.Uint("user_id", u.ID))

	return &AuthResult{User: u, Token: issued.Token}, nil
}

// RequestLoginOTP starts a verification for a phone that already has an
// account.
func (a *Auth) RequestLoginOTP(ctx context.Context, countryCode, phoneNumber, channel string) (*InitiateResult, error) {
	return a.verifier.Initiate(ctx, InitiateInput{
		CountryCode: countryCode,
		PhoneNumber: phoneNumber,
		Channel:     channel,
		Purpose:     PurposeLogin,
	})
}

// Login checks the code for the phone's pending verification and opens a
// session for the account behind it.
func (a *Auth) Login(ctx context.Context, countryCode, phoneNumber, code string) (*AuthResult, error) {
	u, err := a.users.FindByPhone(ctx, countryCode, phoneNumber)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "No account found with this phone number. Please register first.")
		}

		return nil, fmt.Errorf("failed to get user, %w", err)
	}

	rec, err := a.verifier.Verify(ctx, VerifyInput{
		CountryCode: countryCode,
		PhoneNumber: phoneNumber,
		Code:        code,
	})
	if err != nil {
		return nil, err
	}

	issued, err := a.sessions.Issue(ctx, u.ID, DefaultSessionName, a.sessionTTL)
	if err != nil {
		return nil, err
	}

	now := a.now()

	err = a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := a.users.WithTx(tx).TouchLastLogin(ctx, u.ID, now); err != nil {
			return fmt.Errorf("failed to update last login, %w", err)
		}

		if err := a.verifs.WithTx(tx).Delete(ctx, rec.ID); err != nil {
			return fmt.Errorf("failed to consume verification, %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	u.LastLoginAt = &now

	zap.L().Info("User logged in", zap.Uint("user_id", u.ID))

	return &AuthResult{User: u, Token: issued.Token}, nil
}

// User loads the account a verified session belongs to
func (a *Auth) User(ctx context.Context, id uint) (*model.User, error) {
	u, err := a.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.NotFound, "User not found")
		}

		return nil, fmt.Errorf("failed to get user, %w", err)
	}

	return u, nil
}

func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.sessions.Revoke(ctx, token)
}

func (a *Auth) LogoutAll(ctx context.Context, userID uint) (int64, error) {
	return a.sessions.RevokeAll(ctx, userID)
}
