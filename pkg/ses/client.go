package ses

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// API is the part of the SES v2 client used here.
type API interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Client sends pre-rendered HTML through AWS SES. Credentials come from
// the default AWS chain.
type Client struct {
	api  API
	from string
}

// NewClient loads the AWS config for region. fromEmail must be a verified
// SES identity.
func NewClient(ctx context.Context, region, fromEmail string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewClientWithAPI(sesv2.NewFromConfig(cfg), fromEmail), nil
}

func NewClientWithAPI(api API, fromEmail string) *Client {
	return &Client{api: api, from: fromEmail}
}

func (c *Client) Send(ctx context.Context, to, subject, html string) error {
	if _, err := c.api.SendEmail(ctx, buildInput(c.from, to, subject, html)); err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	return nil
}

func buildInput(from, to, subject, html string) *sesv2.SendEmailInput {
	return &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(html),
						Charset: aws.String("UTF-8"),
					},
				},
			},
		},
	}
}
