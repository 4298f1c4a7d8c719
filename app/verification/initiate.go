// Package verification contains the endpoints that prove control of a phone
// number before an account is created for it
package verification

import (
	"bitwise74/otp-auth/app/respond"
	"bitwise74/otp-auth/internal"
	"bitwise74/otp-auth/internal/service"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type initiateBody struct {
	CountryCode        string `json:"country_code" binding:"required,dial_code"`
	ContactNumber      string `json:"contact_number" binding:"required,phone_digits"`
	VerificationMethod string `json:"verification_method" binding:"omitempty,oneof=sms whatsapp"`
}

func Initiate(c *gin.Context, d *internal.Deps) {
	var data initiateBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	res, err := d.Verifier.Initiate(c.Request.Context(), service.InitiateInput{
		CountryCode: data.CountryCode,
		PhoneNumber: data.ContactNumber,
		Channel:     data.VerificationMethod,
		Purpose:     service.PurposeRegister,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.OK(c, http.StatusOK, fmt.Sprintf("OTP is being sent via %s", res.Channel), gin.H{
		"normalized_phone":   res.NormalizedPhone,
		"channel":            res.Channel,
		"expires_in_minutes": res.ExpiresInMinutes,
	})
}
