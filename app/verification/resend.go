package verification

import (
	"bitwise74/otp-auth/app/respond"
	"bitwise74/otp-auth/internal"
	"bitwise74/otp-auth/internal/service"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type resendBody struct {
	CountryCode        string `json:"country_code" binding:"required,dial_code"`
	ContactNumber      string `json:"contact_number" binding:"required,phone_digits"`
	VerificationMethod string `json:"verification_method" binding:"omitempty,oneof=sms whatsapp"`
}

func Resend(c *gin.Context, d *internal.Deps) {
	var data resendBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	rec, err := d.Verifier.Resend(c.Request.Context(), service.ResendInput{
		CountryCode: data.CountryCode,
		PhoneNumber: data.ContactNumber,
		Channel:     data.VerificationMethod,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.OK(c, http.StatusOK, fmt.Sprintf("OTP resent via %s", rec.Channel), gin.H{
		"channel":        rec.Channel,
		"contact_number": data.ContactNumber,
		"country_code":   data.CountryCode,
	})
}
