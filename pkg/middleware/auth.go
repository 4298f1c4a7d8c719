package middleware

import (
	"bitwise74/otp-auth/internal/apperr"
	"bitwise74/otp-auth/internal/model"
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const AuthCookie = "auth_token"

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*model.SessionToken, error)
}

// NewAuthMiddleware requires a live session credential, taken from the
// Authorization header or the auth_token cookie. On success the user id is
// set as userID.
func NewAuthMiddleware(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := RequestID(c)

		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"status":    false,
				"message":   "Authorization token required",
				"requestID": requestID,
			})
			return
		}

		rec, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			switch apperr.KindOf(err) {
			case apperr.InvalidToken:
				abortUnauthorized(c, "Authorization token invalid")
			case apperr.Revoked:
				abortUnauthorized(c, "Authorization token has been revoked. Please log in again")
			case apperr.Expired:
				abortUnauthorized(c, "Authorization token expired. Please log in again")
			default:
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"status":    false,
					"message":   "Internal server error",
					"requestID": requestID,
				})

				zap.L().Error("Failed to verify session token", zap.Error(err), zap.String("requestID", requestID))
			}
			return
		}

		c.Set("userID", rec.UserID)
		c.Next()
	}
}

// BearerToken returns the credential of the request, the header wins over
// the cookie
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}

	if cookie, err := c.Cookie(AuthCookie); err == nil {
		return cookie
	}

	return ""
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"status":    false,
		"message":   msg,
		"requestID": RequestID(c),
	})
}
