package model

import "time"

const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// PhoneVerification tracks one code challenge for a phone. The code itself
// lives with the provider, never here.
//
// Several rows may exist for the same phone. The pending one is the most
// recently created row that isn't verified yet.
type PhoneVerification struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	CountryCode string `gorm:"size:5;not null;index:idx_phone_verifications_phone"`
	PhoneNumber string `gorm:"size:15;not null;index:idx_phone_verifications_phone"`
	Channel     string `gorm:"size:16;not null"`

	// Opaque id handed out by the provider, if any
	ProviderReference *string
	// Dispatch job enqueued for the latest send. Only used to correlate logs
	JobID *string

	ExpiresAt  time.Time `gorm:"not null;index"`
	Attempts   int       `gorm:"not null;default:0"`
	Verified   bool      `gorm:"not null;default:false"`
	VerifiedAt *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsExpired reports whether the record can no longer serve as evidence of
// verification at t.
func (p *PhoneVerification) IsExpired(t time.Time) bool {
	return t.After(p.ExpiresAt)
}

// ValidChannel reports whether c is a delivery channel the provider supports.
func ValidChannel(c string) bool {
	return c == ChannelSMS || c == ChannelWhatsApp
}
