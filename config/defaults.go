package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Default values for optional configuration fields.
const (
	DefaultCoinGeckoURL    = "https://api.coingecko.com/api/v3"
	DefaultResendURL       = "https://api.resend.com"
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultMaxRetries      = 3
	DefaultRetryDelay      = 5 * time.Second
	DefaultSubject         = "Daily Cryptocurrency Update"
	DefaultSender          = "Crypto Updates <onboarding@resend.dev>"
	DefaultSubscribersPath = "subscribers.json"
	DefaultScheduleAt      = "08:00"
	DefaultCheckInterval   = time.Minute
	DefaultServerPort      = 8501
	DefaultPriceRefresh    = time.Minute
)

const (
	ProviderResend = "resend"
	ProviderSES    = "ses"

	DriverFile     = "file"
	DriverPostgres = "postgres"
)

// Validate checks that enumerated and numeric values are usable.
// Secrets are checked separately by ResolveSecrets since they may come from SSM.
func (c *Config) Validate() error {
	switch c.Email.Provider {
	case ProviderResend, ProviderSES:
	default:
		return fmt.Errorf("email.provider must be %q or %q, got %q", ProviderResend, ProviderSES, c.Email.Provider)
	}

	switch c.Store.Driver {
	case DriverFile:
		if strings.TrimSpace(c.Store.File.Path) == "" {
			return errors.New("store.file.path is required")
		}
	case DriverPostgres:
		if c.Postgres.DBName == "" {
			return errors.New("postgres.dbname is required when store.driver is postgres")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q, got %q", DriverFile, DriverPostgres, c.Store.Driver)
	}

	if c.CoinGecko.MaxRetries < 1 {
		return errors.New("coingecko.max_retries must be >= 1")
	}
	if c.CoinGecko.RetryDelay < 0 {
		return errors.New("coingecko.retry_delay must be >= 0")
	}
	if _, err := time.Parse("15:04", c.Schedule.At); err != nil {
		return fmt.Errorf("schedule.at must be HH:MM, got %q", c.Schedule.At)
	}
	if c.Schedule.CheckInterval <= 0 {
		return errors.New("schedule.check_interval must be > 0")
	}
	if c.Server.PriceRefresh <= 0 {
		return errors.New("server.price_refresh must be > 0")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("server.port must be between 1 and 65535")
	}
	if _, err := c.Schedule.Location(); err != nil {
		return err
	}
	return nil
}
