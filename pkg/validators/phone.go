package validators

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	dialCodeRe = regexp.MustCompile(`^\+\d{1,4}$`)
	phoneDigitsRe = regexp.MustCompile(`^\d{5,15}$`)
	otpRe         = regexp.MustCompile(`^\d{6}$`)
	usernameRe    = regexp.MustCompile(`^[a-zA-Z0-9_]{3,50}$`)
)

func validateDialCode(fl validator.FieldLevel) bool {
	return dialCodeRe.MatchString(fl.Field().String())
}

func validatePhoneDigits(fl validator.FieldLevel) bool {
	return phoneDigitsRe.MatchString(fl.Field().String())
}

func validateOTP(fl validator.FieldLevel) bool {
	return otpRe.MatchString(fl.Field().String())
}

func validateUsername(fl validator.FieldLevel) bool {
	return usernameRe.MatchString(fl.Field().String())
}
