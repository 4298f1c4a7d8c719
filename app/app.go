// Package app wires the services together and serves them over HTTP
package app

import (
	"bitwise74/otp-auth/config"
	"bitwise74/otp-auth/db"
	"bitwise74/otp-auth/internal"
	"bitwise74/otp-auth/internal/provider"
	"bitwise74/otp-auth/internal/ratelimit"
	"bitwise74/otp-auth/internal/repository"
	"bitwise74/otp-auth/internal/service"
	"bitwise74/otp-auth/pkg/middleware"
	"bitwise74/otp-auth/pkg/security"
	"bitwise74/otp-auth/pkg/validators"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Deps   *internal.Deps
	Router *gin.Engine

	mode       string
	queue      *service.JobQueue
	worker     *service.WorkerServer
	dispatcher *service.AsynqDispatcher
	redis      *redis.Client
	memLimiter *ratelimit.Memory
	cleanup    *service.Cleanup
}

// New builds everything the configured mode needs. Nothing is started until
// Run is called.
func New() (*App, error) {
	a := &App{
		Deps: &internal.Deps{},
		mode: viper.GetString("mode"),
	}

	database, err := db.New(viper.GetString("database.driver"), viper.GetString("database.dsn"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.Deps.DB = database

	signer, err := security.NewSessionSigner(viper.GetString("jwt.secret"), nil)
	if err != nil {
		return nil, err
	}

	providerTimeout := viper.GetDuration("provider.timeout")
	p := newProvider(providerTimeout)
	w := service.NewOTPWorker(p, providerTimeout)

	redisOpt := asynq.RedisClientOpt{
		Addr:     viper.GetString("redis.addr"),
		Password: viper.GetString("redis.password"),
		DB:       viper.GetInt("redis.db"),
	}

	switch viper.GetString("queue.driver") {
	case "memory":
		a.queue = service.NewJobQueue(w, viper.GetInt("queue.concurrency"), viper.GetInt("queue.size"))
		a.Deps.Dispatcher = a.queue
	case "redis":
		if a.mode != config.ModeWorker {
			a.dispatcher = service.NewAsynqDispatcher(redisOpt, service.AsynqDispatcherOpts{
				Queue:    viper.GetString("queue.name"),
				MaxRetry: viper.GetInt("queue.max_retry"),
				Timeout:  providerTimeout,
			})
			a.Deps.Dispatcher = a.dispatcher
		}

		if a.mode != config.ModeAPI {
			a.worker = service.NewWorkerServer(redisOpt, w, service.WorkerServerOpts{
				Queue:       viper.GetString("queue.name"),
				Concurrency: viper.GetInt("queue.concurrency"),
			})
		}
	}

	switch viper.GetString("security.limiter_driver") {
	case "redis":
		a.redis = redis.NewClient(&redis.Options{
			Addr:     redisOpt.Addr,
			Password: redisOpt.Password,
			DB:       redisOpt.DB,
		})
		a.Deps.Limiter = ratelimit.NewRedis(a.redis)
	default:
		a.memLimiter = ratelimit.NewMemory()
		a.Deps.Limiter = a.memLimiter
	}

	users := repository.NewUsers(database)
	verifications := repository.NewVerifications(database)
	tokens := repository.NewSessionTokens(database)

	a.Deps.Verifier = service.NewVerifier(verifications, users, a.Deps.Dispatcher, p, service.VerifierOpts{
		TTL:             viper.GetDuration("verification.ttl"),
		MaxResends:      viper.GetInt("verification.max_resends"),
		ProviderTimeout: providerTimeout,
	})
	a.Deps.Sessions = service.NewSessions(tokens, signer, nil)
	a.Deps.Auth = service.NewAuth(database, a.Deps.Verifier, a.Deps.Sessions, service.AuthOpts{
		SessionTTL: viper.GetDuration("jwt.ttl"),
	})
	a.cleanup = service.NewCleanup(tokens, verifications, nil)

	if a.mode != config.ModeWorker {
		if err := validators.RegisterGin(); err != nil {
			return nil, err
		}

		a.Router = NewRouter(a.Deps, RouterConfig{
			Origins:   viper.GetStringSlice("host.cors"),
			RateLimit: viper.GetInt("security.rate_limit"),
			Turnstile: middleware.TurnstileConfig{
				Enabled: viper.GetBool("turnstile.enabled"),
				Secret:  viper.GetString("turnstile.secret_token"),
			},
		})
	}

	return a, nil
}

func newProvider(timeout time.Duration) provider.Provider {
	if viper.GetString("provider.driver") == "console" {
		return provider.NewConsole(viper.GetString("provider.dev_code"))
	}

	return provider.NewTwilio(provider.TwilioConfig{
		AccountSID:       viper.GetString("twilio.account_sid"),
		AuthToken:        viper.GetString("twilio.auth_token"),
		VerifyServiceSID: viper.GetString("twilio.verify_service_sid"),
		Timeout:          timeout,
	})
}

// Run starts the configured parts and blocks until ctx is done or the HTTP
// server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	if a.queue != nil {
		a.queue.Start()
	}

	if a.worker != nil {
		if err := a.worker.Start(); err != nil {
			return fmt.Errorf("failed to start worker, %w", err)
		}

		zap.L().Info("Worker started", zap.String("queue", viper.GetString("queue.name")))
	}

	if a.mode != config.ModeWorker {
		if err := a.cleanup.Start(viper.GetString("cleanup.schedule")); err != nil {
			return fmt.Errorf("failed to schedule cleanup, %w", err)
		}
	}

	errCh := make(chan error, 1)

	var srv *http.Server
	if a.Router != nil {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", viper.GetInt("host.port")),
			Handler:           a.Router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			zap.L().Info("Server starting", zap.String("addr", srv.Addr))

			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		zap.L().Info("Shutting down")
	case runErr = <-errCh:
		zap.L().Error("Server failed", zap.Error(runErr))
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(sctx); err != nil {
			zap.L().Error("Failed to shut down server", zap.Error(err))
		}
	}

	a.Close(sctx)

	return runErr
}

// Close stops the workers and releases every connection. Queued jobs are
// drained until ctx is done.
func (a *App) Close(ctx context.Context) {
	if a.worker != nil {
		a.worker.Shutdown()
	}

	if a.queue != nil {
		if err := a.queue.Shutdown(ctx); err != nil {
			zap.L().Warn("Job queue not drained", zap.Int("pending", a.queue.Pending()), zap.Error(err))
		}
	}

	a.cleanup.Stop()

	if a.dispatcher != nil {
		if err := a.dispatcher.Close(); err != nil {
			zap.L().Error("Failed to close dispatcher", zap.Error(err))
		}
	}

	if a.redis != nil {
		a.redis.Close()
	}

	if a.memLimiter != nil {
		a.memLimiter.Close()
	}

	if err := db.Close(a.Deps.DB); err != nil {
		zap.L().Error("Failed to close database", zap.Error(err))
	}
}
