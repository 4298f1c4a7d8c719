// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/pflag"
	v "github.com/spf13/viper"
)

const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"
)

var (
	_ = pflag.String("mode", ModeAll, "What to run: all, api (HTTP only) or worker (dispatch queue only)")

	validLogLevels       = []string{"debug", "info", "warn", "error", "fatal"}
	validModes           = []string{ModeAll, ModeAPI, ModeWorker}
	validDatabaseDrivers = []string{"sqlite", "postgres"}
	validQueueDrivers    = []string{"memory", "redis"}
	validLimiterDrivers  = []string{"memory", "redis"}
	validProviders       = []string{"twilio", "console"}
)

func genSecret() string {
	b := make([]byte, 64)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that.
func Setup() error {
	pflag.Parse()
	v.BindPFlags(pflag.CommandLine)

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")

	v.AutomaticEnv()

	bindEnvs()
	setDefaults()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(v.ConfigFileNotFoundError); ok {
			return errors.New("config.toml file is missing")
		}

		return fmt.Errorf("failed to read config file, %w", err)
	}

	if v.GetString("jwt.secret") == "" {
		fmt.Println("WARNING: You haven't set a JWT secret, so it has been generated for you. Please set it as an environment variable or in the config.toml file.\nYour random JWT secret:\n\n" + genSecret() + "\n\nPaste it into your config.toml file.")
		os.Exit(0)
	}

	return Validate()
}

func bindEnvs() {
	v.BindEnv("app.log_level", "app_log_level")

	v.BindEnv("host.port", "host_port")
	v.BindEnv("host.cors", "host_cors")

	v.BindEnv("database.driver", "database_driver")
	v.BindEnv("database.dsn", "database_dsn")

	v.BindEnv("jwt.secret", "jwt_secret")
	v.BindEnv("jwt.ttl", "jwt_ttl")

	v.BindEnv("redis.addr", "redis_addr")
	v.BindEnv("redis.password", "redis_password")
	v.BindEnv("redis.db", "redis_db")

	v.BindEnv("queue.driver", "queue_driver")
	v.BindEnv("queue.name", "queue_name")
	v.BindEnv("queue.concurrency", "queue_concurrency")
	v.BindEnv("queue.max_retry", "queue_max_retry")
	v.BindEnv("queue.size", "queue_size")

	v.BindEnv("provider.driver", "provider_driver")
	v.BindEnv("provider.timeout", "provider_timeout")
	v.BindEnv("provider.dev_code", "provider_dev_code")

	v.BindEnv("twilio.account_sid", "twilio_account_sid")
	v.BindEnv("twilio.auth_token", "twilio_auth_token")
	v.BindEnv("twilio.verify_service_sid", "twilio_verify_service_sid")

	v.BindEnv("verification.ttl", "verification_ttl")
	v.BindEnv("verification.max_resends", "verification_max_resends")

	v.BindEnv("security.rate_limit", "security_rate_limit")
	v.BindEnv("security.limiter_driver", "security_limiter_driver")

	v.BindEnv("cleanup.schedule", "cleanup_schedule")

	v.BindEnv("turnstile.enabled", "turnstile_enabled")
	v.BindEnv("turnstile.secret_token", "turnstile_secret_token")
}

func setDefaults() {
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.cors", []string{"http://localhost:5173"})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "database.db")

	v.SetDefault("jwt.ttl", "168h")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.driver", "redis")
	v.SetDefault("queue.name", "otp")
	v.SetDefault("queue.concurrency", 4)
	v.SetDefault("queue.max_retry", 0)
	v.SetDefault("queue.size", 100)

	v.SetDefault("provider.driver", "twilio")
	v.SetDefault("provider.timeout", "10s")
	v.SetDefault("provider.dev_code", "123456")

	v.SetDefault("verification.ttl", "10m")
	v.SetDefault("verification.max_resends", 5)

	v.SetDefault("security.rate_limit", 10)
	v.SetDefault("security.limiter_driver", "redis")

	v.SetDefault("cleanup.schedule", "@hourly")

	v.SetDefault("turnstile.enabled", false)
}

// Validate checks the loaded values. It's split from Setup so tests can run
// it without a config file.
func Validate() error {
	if !slices.Contains(validLogLevels, v.GetString("app.log_level")) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validModes, v.GetString("mode")) {
		return errors.New("invalid mode provided, use all, api or worker")
	}

	if v.GetInt("host.port") <= 0 {
		return errors.New("invalid port provided")
	}

	if v.GetString("mode") != ModeWorker && len(v.GetStringSlice("host.cors")) == 0 {
		return errors.New("host.cors needs at least one allowed origin")
	}

	if !slices.Contains(validDatabaseDrivers, v.GetString("database.driver")) {
		return errors.New("invalid database driver provided")
	}

	if v.GetString("database.dsn") == "" {
		return errors.New("no database dsn provided")
	}

	if v.GetDuration("jwt.ttl") < 0 {
		return errors.New("jwt.ttl can't be negative")
	}

	queueDriver := v.GetString("queue.driver")
	if !slices.Contains(validQueueDrivers, queueDriver) {
		return errors.New("invalid queue driver provided")
	}

	// The memory queue lives inside one process, so the API and the worker
	// can't be split
	if queueDriver == "memory" && v.GetString("mode") != ModeAll {
		return errors.New("the memory queue driver only works with --mode all")
	}

	if v.GetInt("queue.concurrency") <= 0 {
		return errors.New("queue.concurrency must be bigger than 0")
	}

	if v.GetInt("queue.max_retry") < 0 {
		return errors.New("queue.max_retry can't be negative")
	}

	if !slices.Contains(validLimiterDrivers, v.GetString("security.limiter_driver")) {
		return errors.New("invalid limiter driver provided")
	}

	if (queueDriver == "redis" || v.GetString("security.limiter_driver") == "redis") && v.GetString("redis.addr") == "" {
		return errors.New("redis.addr can't be empty when a redis driver is used")
	}

	switch v.GetString("provider.driver") {
	case "twilio":
		if v.GetString("twilio.account_sid") == "" {
			return errors.New("twilio account sid can't be empty")
		}
		if v.GetString("twilio.auth_token") == "" {
			return errors.New("twilio auth token can't be empty")
		}
		if v.GetString("twilio.verify_service_sid") == "" {
			return errors.New("twilio verify service sid can't be empty")
		}
	case "console":
		if v.GetString("provider.dev_code") == "" {
			return errors.New("provider.dev_code can't be empty with the console provider")
		}

		fmt.Println("[WARNING]: The console OTP provider is enabled. No codes will be delivered and a fixed code is accepted")
	default:
		return fmt.Errorf("invalid provider driver provided, use one of %v", validProviders)
	}

	if v.GetDuration("provider.timeout") <= 0 {
		return errors.New("provider.timeout must be bigger than 0")
	}

	if v.GetDuration("verification.ttl") <= 0 {
		return errors.New("verification.ttl must be bigger than 0")
	}

	if v.GetInt("verification.max_resends") <= 0 {
		return errors.New("verification.max_resends must be bigger than 0")
	}

	if v.GetInt("security.rate_limit") <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if !v.GetBool("turnstile.enabled") {
		fmt.Println("[WARNING]: Cloudflare's turnstile is disabled. Some public endpoints won't be guarded against bots")
	} else {
		if v.GetString("turnstile.secret_token") == "" {
			return errors.New("turnstile secret token is missing")
		}
	}

	return nil
}
