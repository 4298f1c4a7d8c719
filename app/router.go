package app

import (
	"bitwise74/otp-auth/app/auth"
	"bitwise74/otp-auth/app/root"
	"bitwise74/otp-auth/app/verification"
	"bitwise74/otp-auth/internal"
	"bitwise74/otp-auth/pkg/middleware"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxBodySize = 64 << 10

// DefaultOrigins is used when RouterConfig has no origins, cors refuses to
// start with none
var DefaultOrigins = []string{"http://localhost:5173"}

type RouterConfig struct {
	Origins []string
	// Requests per second allowed from a single IP
	RateLimit int
	Turnstile middleware.TurnstileConfig
}

var (
	initiateLimit = middleware.PhoneLimit{
		Limit:   5,
		Window:  10 * time.Minute,
		Message: "Too many verification requests. Please try again later.",
	}
	resendLimit = middleware.PhoneLimit{
		Prefix:  "resend-",
		Limit:   3,
		Window:  10 * time.Minute,
		Message: "Too many resend attempts. Please wait before trying again.",
	}
	loginLimit = middleware.PhoneLimit{
		Prefix:  "login-",
		Limit:   5,
		Window:  10 * time.Minute,
		Message: "Too many login attempts. Please try again later.",
	}
)

func NewRouter(d *internal.Deps, cfg RouterConfig) *gin.Engine {
	if len(cfg.Origins) == 0 {
		cfg.Origins = DefaultOrigins
	}

	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     cfg.Origins,
			AllowMethods:     []string{"GET", "POST", "HEAD", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetUint("userID"); v != 0 {
					fields = append(fields, zap.Uint("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	jwt := middleware.NewAuthMiddleware(d.Sessions)
	turnstile := middleware.NewTurnstileMiddleware(cfg.Turnstile)
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit,
		Burst:             cfg.RateLimit * 2,
	})

	m := router.Group("/api", rateLimiter, middleware.BodySizeLimiter(maxBodySize))
	{
		// HEAD /api/heartbeat 		-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)
	}

	v := m.Group("/verification")
	{
		// POST /api/verification/initiate	-> Sends a code to a phone that isn't registered yet
		v.POST("/initiate", turnstile, middleware.PhoneRateLimit(d.Limiter, initiateLimit), func(c *gin.Context) { verification.Initiate(c, d) })

		// POST /api/verification/resend	-> Sends the code again, possibly over another channel
		v.POST("/resend", middleware.PhoneRateLimit(d.Limiter, resendLimit), func(c *gin.Context) { verification.Resend(c, d) })

		// POST /api/verification/verify	-> Checks a code and marks the phone verified
		v.POST("/verify", func(c *gin.Context) { verification.Verify(c, d) })
	}

	a := m.Group("/auth")
	{
		// POST /api/auth/register		-> Creates an account for a verified phone
		a.POST("/register", func(c *gin.Context) { auth.Register(c, d) })

		// POST /api/auth/phone-login/request-otp	-> Sends a login code to a registered phone
		a.POST("/phone-login/request-otp", turnstile, middleware.PhoneRateLimit(d.Limiter, loginLimit), func(c *gin.Context) { auth.RequestLoginOTP(c, d) })

		// POST /api/auth/phone-login/verify-otp	-> Checks a login code and returns a session token
		a.POST("/phone-login/verify-otp", func(c *gin.Context) { auth.Login(c, d) })

		// GET /api/auth/me			-> Returns the account of the session
		a.GET("/me", jwt, func(c *gin.Context) { auth.Me(c, d) })

		// POST /api/auth/logout		-> Revokes the session token, expired ones included
		a.POST("/logout", func(c *gin.Context) { auth.Logout(c, d) })

		// POST /api/auth/logout-all		-> Revokes every session of the account
		a.POST("/logout-all", jwt, func(c *gin.Context) { auth.LogoutAll(c, d) })
	}

	return router
}
