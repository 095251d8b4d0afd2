package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cryptodigest/internal/market"

	"go.uber.org/zap"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 5 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	notifier   Notifier
	sleep      SleepFunc

	maxRetries int
	retryDelay time.Duration
}

type Option func(*RESTClient)

// WithRetry sets the default attempt budget and the first backoff delay.
func WithRetry(maxRetries int, retryDelay time.Duration) Option {
	return func(c *RESTClient) {
		c.maxRetries = maxRetries
		c.retryDelay = retryDelay
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *RESTClient) {
		c.logger = logger
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *RESTClient) {
		c.notifier = n
	}
}

// WithSleep replaces the backoff wait, mainly for tests.
func WithSleep(fn SleepFunc) Option {
	return func(c *RESTClient) {
		c.sleep = fn
	}
}

func NewRESTClient(baseURL string, timeout time.Duration, opts ...Option) *RESTClient {
	c := &RESTClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
		sleep:      sleepContext,
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.notifier == nil {
		c.notifier = LogNotifier(c.logger)
	}
	return c
}

// ReportingTo returns a copy of the client that reports notices to n
// instead. The copy shares the underlying http.Client.
func (c *RESTClient) ReportingTo(n Notifier) *RESTClient {
	cp := *c
	cp.notifier = n
	return &cp
}

// FetchPrices fetches bitcoin and ethereum using the configured retry policy.
func (c *RESTClient) FetchPrices(ctx context.Context) (market.Snapshot, error) {
	return c.FetchPricesWithRetry(ctx, c.maxRetries, c.retryDelay)
}

// FetchPricesWithRetry makes at most maxRetries attempts. Only HTTP 429 is
// retried: the client sleeps baseDelay, doubles it, and tries again. The last
// attempt never sleeps. Any other non-200 status fails immediately.
func (c *RESTClient) FetchPricesWithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration) (market.Snapshot, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}
	delay := baseDelay

	for attempt := 0; attempt < maxRetries; attempt++ {
		status, body, err := c.getSimplePrice(ctx)
		if err != nil {
			return nil, err
		}

		switch status {
		case http.StatusOK:
			snapshot, err := parseSnapshot(body)
			if err != nil {
				c.notify(LevelError, "Error fetching data: unexpected response format")
				return nil, err
			}
			return snapshot, nil

		case http.StatusTooManyRequests:
			if attempt == maxRetries-1 {
				c.notify(LevelError, "Rate limit exceeded. Please try again later.")
				return nil, ErrRateLimited
			}
			c.notify(LevelWarning, fmt.Sprintf("Rate limit hit. Retrying in %g seconds...", delay.Seconds()))
			c.logger.Debug("coingecko rate limited",
				zap.Int("attempt", attempt+1),
				zap.Int("max_retries", maxRetries),
				zap.Duration("backoff", delay))
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
			delay *= 2

		default:
			c.notify(LevelError, fmt.Sprintf("Error fetching data: %d", status))
			return nil, &UpstreamError{StatusCode: status, Body: string(body)}
		}
	}

	return nil, ErrRateLimited
}

func (c *RESTClient) getSimplePrice(ctx context.Context) (int, []byte, error) {
	ids := make([]string, len(market.Assets))
	for i, a := range market.Assets {
		ids[i] = string(a)
	}
	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("vs_currencies", "usd")
	query.Set("include_24hr_change", "true")

	endpoint := c.baseURL + "/simple/price?" + query.Encode()

	// Construct the GET request with context for timeout/cancel support
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func parseSnapshot(body []byte) (market.Snapshot, error) {
	var raw SimplePriceResponse
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	snapshot := make(market.Snapshot, len(market.Assets))
	for _, asset := range market.Assets {
		entry, ok := raw[string(asset)]
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrMalformedResponse, asset)
		}
		if !entry.USD.Valid || !entry.USD24hChange.Valid {
			return nil, fmt.Errorf("%w: incomplete quote for %s", ErrMalformedResponse, asset)
		}
		snapshot[asset] = market.Quote{
			Price:     entry.USD.Decimal,
			Change24h: entry.USD24hChange.Decimal,
		}
	}
	return snapshot, nil
}

func (c *RESTClient) notify(level Level, msg string) {
	c.notifier.Notify(Notice{Level: level, Message: msg})
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
