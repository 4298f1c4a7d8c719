package internal

import (
	"bitwise74/otp-auth/internal/ratelimit"
	"bitwise74/otp-auth/internal/service"

	"gorm.io/gorm"
)

type Deps struct {
	DB         *gorm.DB
	Verifier   *service.Verifier
	Sessions   *service.Sessions
	Auth       *service.Auth
	Dispatcher service.Dispatcher
	Limiter    ratelimit.Limiter
}
