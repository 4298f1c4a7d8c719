package middleware

import (
	"bitwise74/otp-auth/internal/ratelimit"
	"bitwise74/otp-auth/pkg/util"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PhoneLimit struct {
	// Prepended to the normalized phone so policies don't share a window
	Prefix  string
	Limit   int
	Window  time.Duration
	Message string
}

// The verification endpoints call the number contact_number, the auth ones
// phone_number
type phoneBody struct {
	CountryCode   string `json:"country_code"`
	PhoneNumber   string `json:"phone_number"`
	ContactNumber string `json:"contact_number"`
}

func (b *phoneBody) number() string {
	if b.PhoneNumber != "" {
		return b.PhoneNumber
	}

	return b.ContactNumber
}

// PhoneRateLimit counts requests per phone number found in the JSON body.
// The body is put back for the handler. Requests without a phone are passed
// on uncounted so validation can reject them, and a failing limiter lets the
// request through.
func PhoneRateLimit(l ratelimit.Limiter, p PhoneLimit) gin.HandlerFunc {
	if p.Message == "" {
		p.Message = "Too many requests. Please try again later."
	}

	return func(c *gin.Context) {
		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"status":    false,
				"message":   "Failed to read request body",
				"requestID": RequestID(c),
			})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(raw))

		var body phoneBody
		if json.Unmarshal(raw, &body) != nil || body.CountryCode == "" || body.number() == "" {
			c.Next()
			return
		}

		key := p.Prefix + util.NormalizePhone(body.CountryCode, body.number())

		ok, err := l.Allow(c.Request.Context(), key, p.Limit, p.Window)
		if err != nil {
			zap.L().Error("Rate limiter failed", zap.Error(err), zap.String("requestID", RequestID(c)))
			c.Next()
			return
		}

		if !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":    false,
				"message":   p.Message,
				"requestID": RequestID(c),
			})
			return
		}

		c.Next()
	}
}
