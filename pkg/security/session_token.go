package security

import (
	"bitwise74/otp-auth/pkg/util"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	secretSize = 32
	tokenType  = "auth"
)

var (
	ErrTokenInvalid = errors.New("session token invalid")
	ErrTokenExpired = errors.New("session token expired")
)

// SessionClaims is what a session credential carries. ID (jti) holds the
// random secret whose hash keys the server side record.
type SessionClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject as the numeric user id
func (c *SessionClaims) UserID() (uint, error) {
	id, err := strconv.ParseUint(c.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad subject", ErrTokenInvalid)
	}

	return uint(id), nil
}

type SessionSigner struct {
	key []byte
	now func() time.Time
}

func NewSessionSigner(secret string, now func() time.Time) (*SessionSigner, error) {
	if secret == "" {
		return nil, errors.New("no signing secret provided")
	}

	if now == nil {
		now = time.Now
	}

	return &SessionSigner{key: []byte(secret), now: now}, nil
}

type SessionTokenOpts struct {
	UserID    uint
	IssuedAt  time.Time
	ExpiresAt *time.Time
}

// MakeSessionToken generates a fresh secret and signs a credential around it.
// It returns the credential and the secret's hash, the secret itself isn't
// kept anywhere.
func (s *SessionSigner) MakeSessionToken(o *SessionTokenOpts) (token, hash string, err error) {
	if o == nil {
		return "", "", errors.New("no token options provided")
	}

	if o.UserID == 0 {
		return "", "", errors.New("no user ID provided")
	}

	secret, err := util.GenerateToken(secretSize)
	if err != nil {
		return "", "", err
	}

	claims := &SessionClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strconv.FormatUint(uint64(o.UserID), 10),
			ID:       secret,
			IssuedAt: jwt.NewNumericDate(o.IssuedAt),
		},
	}

	if o.ExpiresAt != nil {
		claims.ExpiresAt = jwt.NewNumericDate(*o.ExpiresAt)
	}

	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", "", fmt.Errorf("failed to sign session token, %w", err)
	}

	return token, HashSecret(secret), nil
}

// ParseSessionToken checks the signature and claims of a credential. A
// credential that is authentic but past its exp comes back with its claims
// and ErrTokenExpired, anything else that fails is ErrTokenInvalid.
func (s *SessionSigner) ParseSessionToken(token string) (*SessionClaims, error) {
	var claims SessionClaims

	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}

		return s.key, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		// The signature is checked before the claims, so this one is ours
		if claims.ID == "" {
			return nil, ErrTokenInvalid
		}

		return &claims, ErrTokenExpired
	default:
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if claims.Type != tokenType || claims.ID == "" || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return &claims, nil
}

// HashSecret is the lookup key of a session record
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
