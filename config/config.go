package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	Email     EmailConfig     `mapstructure:"email"`
	Store     StoreConfig     `mapstructure:"store"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	Server    ServerConfig    `mapstructure:"server"`
	Secrets   SecretsConfig   `mapstructure:"secrets"`
}

type AppConfig struct {
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

type CoinGeckoConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"` // total attempts, not extra ones
	RetryDelay time.Duration `mapstructure:"retry_delay"` // first backoff, doubled per 429
}

type EmailConfig struct {
	Provider string       `mapstructure:"provider"` // "resend" or "ses"
	Subject  string       `mapstructure:"subject"`
	Resend   ResendConfig `mapstructure:"resend"`
	SES      SESConfig    `mapstructure:"ses"`
}

type ResendConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	From    string        `mapstructure:"from"`
	APIKey  string        `mapstructure:"api_key"`
}

type SESConfig struct {
	Region string `mapstructure:"region"`
	From   string `mapstructure:"from"`
}

type StoreConfig struct {
	Driver string          `mapstructure:"driver"` // "file" or "postgres"
	File   FileStoreConfig `mapstructure:"file"`
}

type FileStoreConfig struct {
	Path string `mapstructure:"path"`
}

type ScheduleConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	At            string        `mapstructure:"at"` // local time of day, "HH:MM"
	CheckInterval time.Duration `mapstructure:"check_interval"`
	Timezone      string        `mapstructure:"timezone"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	PriceRefresh time.Duration `mapstructure:"price_refresh"`
}

type SecretsConfig struct {
	SSMParameter string `mapstructure:"ssm_parameter"` // Parameter Store name holding the Resend key
}

// Options defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // log level: "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // log format: "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // file path to store logs (optional)
	Environment string `mapstructure:"environment"` // environment: "dev" or "prod"
}

// Load loads application configuration using Viper.
// It reads from the given file (or config.yaml on the search path when
// path is empty) and overrides with environment variables.
// A missing config file is not an error: defaults and env still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config") // config.yaml
		v.SetConfigType("yaml")
		for _, dir := range searchPaths() {
			v.AddConfigPath(dir)
		}
	}

	// Support environment variables with dot notation (e.g., COINGECKO_BASE_URL)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("email.resend.api_key", "RESEND_API_KEY", "EMAIL_RESEND_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Log.Environment == "" {
		cfg.Log.Environment = cfg.App.Environment
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func searchPaths() []string {
	paths := []string{"config", "."}

	ex, err := os.Executable()
	if err != nil {
		return paths
	}
	if strings.Contains(ex, "go-build") {
		pwd, _ := os.Getwd()
		return append(paths, filepath.Join(pwd, "../../config"))
	}
	return append(paths, filepath.Join(filepath.Dir(ex), "../config"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "dev")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("coingecko.base_url", DefaultCoinGeckoURL)
	v.SetDefault("coingecko.timeout", DefaultHTTPTimeout)
	v.SetDefault("coingecko.max_retries", DefaultMaxRetries)
	v.SetDefault("coingecko.retry_delay", DefaultRetryDelay)

	v.SetDefault("email.provider", ProviderResend)
	v.SetDefault("email.subject", DefaultSubject)
	v.SetDefault("email.resend.base_url", DefaultResendURL)
	v.SetDefault("email.resend.timeout", DefaultHTTPTimeout)
	v.SetDefault("email.resend.from", DefaultSender)

	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.file.path", DefaultSubscribersPath)

	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.at", DefaultScheduleAt)
	v.SetDefault("schedule.check_interval", DefaultCheckInterval)
	v.SetDefault("schedule.timezone", "Local")

	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.price_refresh", DefaultPriceRefresh)
}

// Location resolves schedule.timezone, treating "" and "Local" as time.Local.
func (s ScheduleConfig) Location() (*time.Location, error) {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("schedule.timezone: %w", err)
	}
	return loc, nil
}
