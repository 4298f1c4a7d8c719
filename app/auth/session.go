package auth

import (
	"bitwise74/otp-auth/app/respond"
	"bitwise74/otp-auth/internal"
	"bitwise74/otp-auth/internal/apperr"
	"bitwise74/otp-auth/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Me returns the account of the session. Runs behind the auth middleware,
// which sets userID.
func Me(c *gin.Context, d *internal.Deps) {
	u, err := d.Auth.User(c.Request.Context(), c.GetUint("userID"))
	if err != nil {
		respond.SessionError(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "", gin.H{"user": u})
}

// Logout doesn't run behind the auth middleware so that an expired token can
// still be revoked
func Logout(c *gin.Context, d *internal.Deps) {
	token := middleware.BearerToken(c)
	if token == "" {
		respond.Error(c, apperr.New(apperr.InvalidToken, "Authorization token required"))
		return
	}

	if err := d.Auth.Logout(c.Request.Context(), token); err != nil {
		respond.SessionError(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Logged out successfully", gin.H{})
}

func LogoutAll(c *gin.Context, d *internal.Deps) {
	n, err := d.Auth.LogoutAll(c.Request.Context(), c.GetUint("userID"))
	if err != nil {
		respond.SessionError(c, err)
		return
	}

	respond.OK(c, http.StatusOK, "Logged out of all sessions", gin.H{"revoked": n})
}
