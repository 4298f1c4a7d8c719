package verification

import (
	"bitwise74/otp-auth/app/respond"
	"bitwise74/otp-auth/internal"
	"bitwise74/otp-auth/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type verifyBody struct {
	CountryCode   string `json:"country_code" binding:"required,dial_code"`
	ContactNumber string `json:"contact_number" binding:"required,phone_digits"`
	OTP           string `json:"otp" binding:"required,otp"`
}

func Verify(c *gin.Context, d *internal.Deps) {
	var data verifyBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	rec, err := d.Verifier.Verify(c.Request.Context(), service.VerifyInput{
		CountryCode: data.CountryCode,
		PhoneNumber: data.ContactNumber,
		Code:        data.OTP,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Phone number verified successfully", gin.H{
		"contact_number": data.ContactNumber,
		"country_code":   data.CountryCode,
		"verified_at":    rec.VerifiedAt,
	})
}
