package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const turnstileVerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

type TurnstileConfig struct {
	Enabled bool
	Secret  string
	// Overrides the Cloudflare siteverify endpoint
	VerifyURL string
	Client    *http.Client
}

type response struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// NewTurnstileMiddleware rejects requests whose TurnstileToken header doesn't
// pass Cloudflare's check. It guards the endpoints that cost an OTP send.
func NewTurnstileMiddleware(cfg TurnstileConfig) gin.HandlerFunc {
	if cfg.VerifyURL == "" {
		cfg.VerifyURL = turnstileVerifyURL
	}

	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		requestID := RequestID(c)

		token := c.Request.Header.Get("TurnstileToken")
		if token == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"status":    false,
				"message":   "Missing or invalid turnstile token",
				"requestID": requestID,
			})
			return
		}

		payload := gin.H{
			"secret":   cfg.Secret,
			"response": token,
			"remoteip": c.ClientIP(),
		}

		jsonBody, _ := json.Marshal(payload)

		req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, cfg.VerifyURL, bytes.NewReader(jsonBody))
		if err != nil {
			abortUnauthorized(c, "Unauthorized")
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := cfg.Client.Do(req)
		if err != nil {
			zap.L().Error("Failed to reach turnstile", zap.Error(err), zap.String("requestID", requestID))
			abortUnauthorized(c, "Unauthorized")
			return
		}
		defer resp.Body.Close()

		respBody, _ := io.ReadAll(resp.Body)

		var res response
		if err := json.Unmarshal(respBody, &res); err != nil || !res.Success {
			zap.L().Debug("Turnstile check failed", zap.Strings("error_codes", res.ErrorCodes), zap.String("requestID", requestID))
			abortUnauthorized(c, "Unauthorized")
			return
		}

		c.Next()
	}
}
