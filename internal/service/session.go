package service

import (
	"bitwise74/otp-auth/internal/apperr"
	"bitwise74/otp-auth/internal/model"
	"bitwise74/otp-auth/internal/repository"
	"bitwise74/otp-auth/pkg/security"
	"context"
	"errors"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	DefaultSessionTTL  = 7 * 24 * time.Hour
	DefaultSessionName = "auth_token"

	touchTimeout = 5 * time.Second
)

type SessionStore interface {
	Create(ctx context.Context, t *model.SessionToken) error
	FindByHash(ctx context.Context, hash string) (*model.SessionToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByHash(ctx context.Context, hash string) (int64, error)
	DeleteByUser(ctx context.Context, userID uint) (int64, error)
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
}

// Sessions issues, checks and revokes session credentials. A credential is
// only good while its record exists, whatever its signature and exp say.
type Sessions struct {
	store  SessionStore
	signer *security.SessionSigner
	now    func() time.Time
}

func NewSessions(s SessionStore, signer *security.SessionSigner, now func() time.Time) *Sessions {
	if now == nil {
		now = time.Now
	}

	return &Sessions{store: s, signer: signer, now: now}
}

type IssuedToken struct {
	// Shown to the caller once, can't be rebuilt from the record
	Token  string
	Record *model.SessionToken
}

// Issue mints a credential for userID. A ttl of 0 makes a credential that
// never expires.
func (s *Sessions) Issue(ctx context.Context, userID uint, name string, ttl time.Duration) (*IssuedToken, error) {
	if name == "" {
		name = DefaultSessionName
	}

	now := s.now()

	var expiresAt *time.Time
	if ttl > 0 {
		t := now.Add(ttl)
		expiresAt = &t
	}

	token, hash, err := s.signer.MakeSessionToken(&security.SessionTokenOpts{
		UserID:    userID,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to make session token, %w", err)
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID, %w", err)
	}

	rec := &model.SessionToken{
		ID:        id,
		UserID:    userID,
		Name:      name,
		TokenHash: hash,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}

	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store session token, %w", err)
	}

	return &IssuedToken{Token: token, Record: rec}, nil
}

// Verify resolves a credential to its record, which carries the user id.
func (s *Sessions) Verify(ctx context.Context, token string) (*model.SessionToken, error) {
	claims, err := s.signer.ParseSessionToken(token)
	if err != nil && !errors.Is(err, security.ErrTokenExpired) {
		return nil, apperr.Wrap(apperr.InvalidToken, "Invalid token", err)
	}
	signatureExpired := err != nil

	hash := security.HashSecret(claims.ID)

	rec, err := s.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.New(apperr.Revoked, "Token has been revoked")
		}

		return nil, fmt.Errorf("failed to look up session token, %w", err)
	}

	if signatureExpired || rec.IsExpired(s.now()) {
		if err := s.store.Delete(ctx, rec.ID); err != nil {
			return nil, fmt.Errorf("failed to delete expired session token, %w", err)
		}

		return nil, apperr.New(apperr.Expired, "Token has expired")
	}

	s.touch(rec.ID)

	return rec, nil
}

// touch records the use of a session without holding up the caller. A
// failed update only shows up in the logs.
func (s *Sessions) touch(id string) {
	at := s.now()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), touchTimeout)
		defer cancel()

		if err := s.store.TouchLastUsed(ctx, id, at); err != nil {
			zap.L().Warn("Failed to update session last use", zap.Error(err))
		}
	}()
}

// Revoke deletes the record behind a credential. Revoking twice is fine, an
// unreadable credential is not.
func (s *Sessions) Revoke(ctx context.Context, token string) error {
	claims, err := s.signer.ParseSessionToken(token)
	if err != nil && !errors.Is(err, security.ErrTokenExpired) {
		return apperr.Wrap(apperr.InvalidToken, "Invalid token", err)
	}

	if _, err := s.store.DeleteByHash(ctx, security.HashSecret(claims.ID)); err != nil {
		return fmt.Errorf("failed to revoke session token, %w", err)
	}

	return nil
}

// RevokeAll deletes every session of a user and returns how many there were
func (s *Sessions) RevokeAll(ctx context.Context, userID uint) (int64, error) {
	n, err := s.store.DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke sessions, %w", err)
	}

	zap.L().Info("Revoked all sessions", zap.Uint("user_id", userID), zap.Int64("count", n))

	return n, nil
}
