package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// ErrMissingAPIKey means no Resend key was found in env, config or Parameter Store.
var ErrMissingAPIKey = errors.New("email api key is not configured (set RESEND_API_KEY)")

// ParameterFetcher reads one (decrypted) parameter value.
type ParameterFetcher func(ctx context.Context, name string) (string, error)

// ResolveSecrets fills in the email API key. In prod, a configured
// secrets.ssm_parameter takes precedence over env and file values.
// The SES provider authenticates with the AWS credential chain instead.
func (c *Config) ResolveSecrets(ctx context.Context, fetch ParameterFetcher) error {
	if c.Email.Provider != ProviderResend {
		return nil
	}

	if c.App.Environment == "prod" && c.Secrets.SSMParameter != "" {
		if fetch == nil {
			fetch = GetParameterStoreValue
		}
		value, err := fetch(ctx, c.Secrets.SSMParameter)
		if err != nil {
			return fmt.Errorf("read %s from parameter store: %w", c.Secrets.SSMParameter, err)
		}
		if value != "" {
			c.Email.Resend.APIKey = value
		}
	}

	if c.Email.Resend.APIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// GetParameterStoreValue reads a SecureString from AWS SSM Parameter Store.
func GetParameterStoreValue(ctx context.Context, parameterName string) (string, error) {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cfg, err := awsconfig.LoadDefaultConfig(ctxWithTimeout)
	if err != nil {
		return "", fmt.Errorf("load aws config: %w", err)
	}

	client := ssm.NewFromConfig(cfg)

	decrypt := true
	input := &ssm.GetParameterInput{
		Name:           &parameterName,
		WithDecryption: &decrypt,
	}

	result, err := client.GetParameter(ctxWithTimeout, input)
	if err != nil {
		return "", err
	}

	if result.Parameter == nil || result.Parameter.Value == nil {
		return "", nil
	}

	return *result.Parameter.Value, nil
}
