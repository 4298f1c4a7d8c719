package auth

import (
	"bitwise74/otp-auth/app/respond"
	"bitwise74/otp-auth/internal"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

type requestOTPBody struct {
	CountryCode string `json:"country_code" binding:"required,dial_code"`
	PhoneNumber string `json:"phone_number" binding:"required,phone_digits"`
	Channel     string `json:"channel" binding:"omitempty,oneof=sms whatsapp"`
}

func RequestLoginOTP(c *gin.Context, d *internal.Deps) {
	var data requestOTPBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	res, err := d.Auth.RequestLoginOTP(c.Request.Context(), data.CountryCode, data.PhoneNumber, data.Channel)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.OK(c, http.StatusOK, fmt.Sprintf("OTP sent successfully via %s", res.Channel), gin.H{
		"channel":            res.Channel,
		"expires_in_minutes": res.ExpiresInMinutes,
	})
}

type loginBody struct {
	CountryCode string `json:"country_code" binding:"required,dial_code"`
	PhoneNumber string `json:"phone_number" binding:"required,phone_digits"`
	OTP         string `json:"otp" binding:"required,otp"`
}

func Login(c *gin.Context, d *internal.Deps) {
	var data loginBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	res, err := d.Auth.Login(c.Request.Context(), data.CountryCode, data.PhoneNumber, data.OTP)
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Login successful", gin.H{
		"user":       res.User,
		"auth_token": res.Token,
	})
}
