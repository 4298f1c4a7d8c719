// Package validators contains validators found throughout the application
// that have been abstracted away from the main code
package validators

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Register adds the custom tags to v
func Register(v *validator.Validate) error {
	tags := map[string]validator.Func{
		"dial_code":     validateDialCode,
		"phone_digits":  validatePhoneDigits,
		"otp":           validateOTP,
		"username":      validateUsername,
		"email_address": validateEmail,
	}

	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validator, %w", tag, err)
		}
	}

	return nil
}

// RegisterGin adds the custom tags to the validator gin binds requests with
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}

	return Register(v)
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Describe turns a binding error into messages meant for the client. ok is
// false when err isn't a validation error, for example malformed JSON.
func Describe(err error) (fields []FieldError, ok bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}

	for _, fe := range verrs {
		fields = append(fields, FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}

	return fields, true
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "dial_code":
		return "Country code must start with + followed by 1-4 digits"
	case "phone_digits":
		return "Phone number must contain 5-15 digits"
	case "otp":
		return "OTP must be exactly 6 digits"
	case "username":
		return "Username must be 3-50 characters and contain only letters, numbers and underscores"
	case "email_address":
		return ErrEmailInvalid.Error()
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters long", fe.Field(), fe.Param())
	default:
		return fe.Field() + " is invalid"
	}
}
