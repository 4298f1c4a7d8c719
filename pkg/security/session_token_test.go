package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeAndParseSessionToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSessionSigner("secret", func() time.Time { return now })
	require.NoError(t, err)

	exp := now.Add(time.Hour)
	token, hash, err := s.MakeSessionToken(&SessionTokenOpts{UserID: 42, IssuedAt: now, ExpiresAt: &exp})
	require.NoError(t, err)

	claims, err := s.ParseSessionToken(token)
	require.NoError(t, err)

	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, uint(42), id)
	assert.Equal(t, hash, HashSecret(claims.ID))
	assert.Len(t, claims.ID, 64)
	assert.False(t, strings.Contains(token, hash))
}

func TestParseExpiredSessionToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s, err := NewSessionSigner("secret", func() time.Time { return now })
	require.NoError(t, err)

	exp := now.Add(-time.Minute)
	token, hash, err := s.MakeSessionToken(&SessionTokenOpts{UserID: 1, IssuedAt: now.Add(-time.Hour), ExpiresAt: &exp})
	require.NoError(t, err)

	claims, err := s.ParseSessionToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
	require.NotNil(t, claims)
	assert.Equal(t, hash, HashSecret(claims.ID))
}

func TestParseRejects(t *testing.T) {
	s, err := NewSessionSigner("secret", nil)
	require.NoError(t, err)

	other, err := NewSessionSigner("other", nil)
	require.NoError(t, err)

	forged, _, err := other.MakeSessionToken(&SessionTokenOpts{UserID: 1, IssuedAt: time.Now()})
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, &SessionClaims{
		Type:             tokenType,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ID: "abc"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongType, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &SessionClaims{
		Type:             "refresh",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "1", ID: "abc"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":    "abc.def.ghi",
		"forged":     forged,
		"alg none":   none,
		"wrong type": wrongType,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := s.ParseSessionToken(token)
			assert.ErrorIs(t, err, ErrTokenInvalid)
		})
	}
}

func TestMakeSessionTokenNeedsUser(t *testing.T) {
	s, err := NewSessionSigner("secret", nil)
	require.NoError(t, err)

	_, _, err = s.MakeSessionToken(&SessionTokenOpts{})
	assert.Error(t, err)

	_, err = NewSessionSigner("", nil)
	assert.Error(t, err)
}
