// Package respond writes the JSON envelopes every endpoint answers with and
// maps service errors to status codes.
package respond

import (
	"bitwise74/otp-auth/internal/apperr"
	"bitwise74/otp-auth/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var statusByKind = map[apperr.Kind]int{
	apperr.NotFound:            http.StatusNotFound,
	apperr.Conflict:            http.StatusConflict,
	apperr.Expired:             http.StatusBadRequest,
	apperr.RateExceeded:        http.StatusTooManyRequests,
	apperr.InvalidCode:         http.StatusBadRequest,
	apperr.InvalidToken:        http.StatusUnauthorized,
	apperr.Revoked:             http.StatusUnauthorized,
	apperr.ProviderUnavailable: http.StatusBadGateway,
	apperr.Validation:          http.StatusBadRequest,
	apperr.Internal:            http.StatusInternalServerError,
}

// Status returns the HTTP status for an error kind
func Status(k apperr.Kind) int {
	if s, ok := statusByKind[k]; ok {
		return s
	}

	return http.StatusInternalServerError
}

func OK(c *gin.Context, status int, message string, data any) {
	body := gin.H{
		"status":  true,
		"message": message,
	}

	if data != nil {
		body["data"] = data
	}

	c.JSON(status, body)
}

// Error answers with the error's kind. Anything that isn't a typed error is
// logged and hidden behind a generic message.
func Error(c *gin.Context, err error) {
	write(c, err, Status(apperr.KindOf(err)))
}

// SessionError is Error for endpoints that take a session credential, where
// an expired credential means the caller has to log in again.
func SessionError(c *gin.Context, err error) {
	status := Status(apperr.KindOf(err))
	if apperr.KindOf(err) == apperr.Expired {
		status = http.StatusUnauthorized
	}

	write(c, err, status)
}

func write(c *gin.Context, err error, status int) {
	requestID := c.GetString("requestID")

	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.Internal {
		zap.L().Error("Request failed", zap.Error(err), zap.String("requestID", requestID))

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"status":    false,
			"message":   "Internal server error",
			"requestID": requestID,
		})
		return
	}

	if e.Err != nil {
		zap.L().Warn("Request failed", zap.String("kind", e.Kind.String()), zap.Error(e.Err), zap.String("requestID", requestID))
	}

	body := gin.H{
		"status":    false,
		"message":   e.Message,
		"requestID": requestID,
	}

	if len(e.Data) > 0 {
		body["data"] = e.Data
	}

	c.AbortWithStatusJSON(status, body)
}

// BindError answers a request whose body didn't bind. Validation failures
// list the offending fields.
func BindError(c *gin.Context, err error) {
	requestID := c.GetString("requestID")

	fields, ok := validators.Describe(err)
	if !ok {
		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))

		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"status":    false,
			"message":   "Invalid request body",
			"requestID": requestID,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status":    false,
		"message":   "Validation failed",
		"errors":    fields,
		"requestID": requestID,
	})
}
