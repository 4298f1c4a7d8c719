package config

import (
	"testing"

	v "github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func validConfig(t *testing.T) {
	t.Helper()

	v.Reset()
	t.Cleanup(v.Reset)

	setDefaults()
	v.Set("mode", ModeAll)
	v.Set("jwt.secret", "secret")
	v.Set("provider.driver", "console")
}

func TestValidateDefaults(t *testing.T) {
	validConfig(t)
	assert.NoError(t, Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  any
	}{
		{"log level", "app.log_level", "verbose"},
		{"mode", "mode", "both"},
		{"port", "host.port", 0},
		{"no cors origins", "host.cors", []string{}},
		{"database driver", "database.driver", "mysql"},
		{"queue driver", "queue.driver", "kafka"},
		{"limiter driver", "security.limiter_driver", "memcached"},
		{"provider", "provider.driver", "vonage"},
		{"provider timeout", "provider.timeout", "0s"},
		{"verification ttl", "verification.ttl", "-1m"},
		{"negative retry", "queue.max_retry", -1},
		{"rate limit", "security.rate_limit", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validConfig(t)
			v.Set(tt.key, tt.val)

			assert.Error(t, Validate())
		})
	}
}

func TestValidateTwilioNeedsCredentials(t *testing.T) {
	validConfig(t)
	v.Set("provider.driver", "twilio")
	assert.Error(t, Validate())

	v.Set("twilio.account_sid", "AC123")
	v.Set("twilio.auth_token", "token")
	v.Set("twilio.verify_service_sid", "VA123")
	assert.NoError(t, Validate())
}

func TestValidateMemoryQueueNeedsSingleProcess(t *testing.T) {
	validConfig(t)
	v.Set("queue.driver", "memory")

	v.Set("mode", ModeAPI)
	assert.Error(t, Validate())

	v.Set("mode", ModeAll)
	assert.NoError(t, Validate())
}

func TestValidateTurnstileNeedsSecret(t *testing.T) {
	validConfig(t)
	v.Set("turnstile.enabled", true)
	assert.Error(t, Validate())

	v.Set("turnstile.secret_token", "x")
	assert.NoError(t, Validate())
}

func TestValidateWorkerNeedsNoOrigins(t *testing.T) {
	validConfig(t)
	v.Set("host.cors", []string{})

	v.Set("mode", ModeWorker)
	assert.NoError(t, Validate())
}
