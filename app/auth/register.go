// Package auth contains the account endpoints: registration, phone login and
// session management
package auth

import (
	"bitwise74/otp-auth/app/respond"
	"bitwise74/otp-auth/internal"
	"bitwise74/otp-auth/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type registerBody struct {
	FirstName   string  `json:"first_name" binding:"required,min=1,max=100"`
	LastName    string  `json:"last_name" binding:"required,min=1,max=100"`
	Username    string  `json:"username" binding:"required,username"`
	Email       string  `json:"email" binding:"required,email_address"`
	CountryCode string  `json:"country_code" binding:"required,dial_code"`
	PhoneNumber string  `json:"phone_number" binding:"required,phone_digits"`
	Avatar      *string `json:"avatar" binding:"omitempty,url"`
	Bio         *string `json:"bio" binding:"omitempty,max=500"`
}

func Register(c *gin.Context, d *internal.Deps) {
	var data registerBody
	if err := c.ShouldBindJSON(&data); err != nil {
		respond.BindError(c, err)
		return
	}

	res, err := d.Auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName:   data.FirstName,
		LastName:    data.LastName,
		Username:    data.Username,
		Email:       data.Email,
		CountryCode: data.CountryCode,
		PhoneNumber: data.PhoneNumber,
		Avatar:      data.Avatar,
		Bio:         data.Bio,
	})
	if err != nil {
		respond.Error(c, err)
		return
	}

	respond.OK(c, http.StatusCreated, "Registration successful", gin.H{
		"user":       res.User,
		"auth_token": res.Token,
	})
}
