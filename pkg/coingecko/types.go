package coingecko

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrRateLimited is returned once every attempt was answered with HTTP 429.
	ErrRateLimited = errors.New("coingecko: rate limit exceeded")
	// ErrMalformedResponse wraps decode failures of a 200 response.
	ErrMalformedResponse = errors.New("coingecko: malformed response")
)

// UpstreamError is a non-200, non-429 answer. It is never retried.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("coingecko error %d: %s", e.StatusCode, e.Body)
}

// SimplePriceResponse is the /simple/price payload, keyed by coin id.
// e.g. {"bitcoin": {"usd": 65000.5, "usd_24h_change": -2.345}}
type SimplePriceResponse map[string]PriceEntry

type PriceEntry struct {
	USD          decimal.NullDecimal `json:"usd"`            // spot price in USD
	USD24hChange decimal.NullDecimal `json:"usd_24h_change"` // percent, signed
}
