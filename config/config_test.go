package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// go test -v --run TestLoad
func TestLoad(t *testing.T) {
	path := writeTempFile(t, `
coingecko:
  base_url: http://localhost:9999
  max_retries: 5
  retry_delay: 2s
email:
  resend:
    api_key: re_test
store:
  file:
    path: /tmp/subs.json
schedule:
  at: "07:30"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.CoinGecko.BaseURL)
	assert.Equal(t, 5, cfg.CoinGecko.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.CoinGecko.RetryDelay)
	assert.Equal(t, "re_test", cfg.Email.Resend.APIKey)
	assert.Equal(t, "/tmp/subs.json", cfg.Store.File.Path)
	assert.Equal(t, "07:30", cfg.Schedule.At)
}

func TestLoadWithDefaults(t *testing.T) {
	cfg, err := Load(writeTempFile(t, "app:\n  environment: dev\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultCoinGeckoURL, cfg.CoinGecko.BaseURL)
	assert.Equal(t, DefaultMaxRetries, cfg.CoinGecko.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, cfg.CoinGecko.RetryDelay)
	assert.Equal(t, DefaultHTTPTimeout, cfg.CoinGecko.Timeout)
	assert.Equal(t, ProviderResend, cfg.Email.Provider)
	assert.Equal(t, DefaultSender, cfg.Email.Resend.From)
	assert.Equal(t, DefaultSubject, cfg.Email.Subject)
	assert.Equal(t, DriverFile, cfg.Store.Driver)
	assert.Equal(t, DefaultSubscribersPath, cfg.Store.File.Path)
	assert.Equal(t, DefaultScheduleAt, cfg.Schedule.At)
	assert.Equal(t, time.Minute, cfg.Schedule.CheckInterval)
	assert.True(t, cfg.Schedule.Enabled)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, "dev", cfg.Log.Environment)
}

func TestLoadAPIKeyFromEnv(t *testing.T) {
	t.Setenv("RESEND_API_KEY", "re_from_env")

	cfg, err := Load(writeTempFile(t, "app:\n  environment: dev\n"))
	require.NoError(t, err)
	assert.Equal(t, "re_from_env", cfg.Email.Resend.APIKey)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("SCHEDULE_AT", "21:15")

	cfg, err := Load(writeTempFile(t, "schedule:\n  at: \"08:00\"\n"))
	require.NoError(t, err)
	assert.Equal(t, "21:15", cfg.Schedule.At)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad provider", "email:\n  provider: carrier-pigeon\n"},
		{"bad driver", "store:\n  driver: mongo\n"},
		{"postgres without dbname", "store:\n  driver: postgres\n"},
		{"zero retries", "coingecko:\n  max_retries: 0\n"},
		{"bad time", "schedule:\n  at: \"8am\"\n"},
		{"bad timezone", "schedule:\n  timezone: Mars/Olympus\n"},
		{"bad port", "server:\n  port: 70000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeTempFile(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestResolveSecrets(t *testing.T) {
	ctx := context.Background()

	t.Run("missing key", func(t *testing.T) {
		cfg := &Config{Email: EmailConfig{Provider: ProviderResend}}
		assert.ErrorIs(t, cfg.ResolveSecrets(ctx, nil), ErrMissingAPIKey)
	})

	t.Run("key already set", func(t *testing.T) {
		cfg := &Config{Email: EmailConfig{Provider: ProviderResend, Resend: ResendConfig{APIKey: "re_x"}}}
		assert.NoError(t, cfg.ResolveSecrets(ctx, nil))
	})

	t.Run("ses needs no key", func(t *testing.T) {
		cfg := &Config{Email: EmailConfig{Provider: ProviderSES}}
		assert.NoError(t, cfg.ResolveSecrets(ctx, nil))
	})

	t.Run("prod reads parameter store", func(t *testing.T) {
		cfg := &Config{
			App:     AppConfig{Environment: "prod"},
			Email:   EmailConfig{Provider: ProviderResend},
			Secrets: SecretsConfig{SSMParameter: "/cryptodigest/RESEND_API_KEY"},
		}
		var asked string
		err := cfg.ResolveSecrets(ctx, func(_ context.Context, name string) (string, error) {
			asked = name
			return "re_from_ssm", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "/cryptodigest/RESEND_API_KEY", asked)
		assert.Equal(t, "re_from_ssm", cfg.Email.Resend.APIKey)
	})

	t.Run("parameter store failure", func(t *testing.T) {
		cfg := &Config{
			App:     AppConfig{Environment: "prod"},
			Email:   EmailConfig{Provider: ProviderResend},
			Secrets: SecretsConfig{SSMParameter: "/x"},
		}
		boom := errors.New("access denied")
		err := cfg.ResolveSecrets(ctx, func(context.Context, string) (string, error) { return "", boom })
		assert.ErrorIs(t, err, boom)
	})
}
