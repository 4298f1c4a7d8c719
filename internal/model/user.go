package model

import "time"

const UserStatusActive = "active"

// User is owned by the registration flow. The verification and session code
// only ever reads ID, CountryCode and PhoneNumber from it.
type User struct {
	ID              uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	FirstName       string     `gorm:"size:100;not null" json:"first_name"`
	LastName        string     `gorm:"size:100;not null" json:"last_name"`
	DisplayName     string     `gorm:"size:201" json:"display_name"`
	Username        string     `gorm:"size:50;uniqueIndex;not null" json:"username"`
	Email           string     `gorm:"uniqueIndex;not null" json:"email"`
	CountryCode     string     `gorm:"size:5;not null;uniqueIndex:idx_users_phone" json:"country_code"`
	PhoneNumber     string     `gorm:"size:15;not null;uniqueIndex:idx_users_phone" json:"phone_number"`
	EmailVerified   bool       `gorm:"default:false" json:"email_verified"`
	PhoneVerified   bool       `gorm:"default:false" json:"phone_verified"`
	PhoneVerifiedAt *time.Time `json:"phone_verified_at"`
	Avatar          *string    `json:"avatar"`
	Bio             *string    `gorm:"size:500" json:"bio"`
	Status          string     `gorm:"default:active" json:"status"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	SessionTokens []SessionToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
