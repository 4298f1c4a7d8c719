package model

import "time"

// SessionToken is the revocation handle behind an issued credential.
// Deleting the row invalidates every credential that points at it.
type SessionToken struct {
	ID     string `gorm:"primaryKey;size:21"`
	UserID uint   `gorm:"not null;index"`
	Name   string `gorm:"size:64;not null;default:auth_token"`

	// sha256 of the secret embedded in the credential
	TokenHash string `gorm:"size:64;uniqueIndex;not null"`

	// nil never expires
	ExpiresAt  *time.Time `gorm:"index"`
	LastUsedAt *time.Time
	CreatedAt  time.Time
}

func (t *SessionToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && now.After(*t.ExpiresAt)
}
