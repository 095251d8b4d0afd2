package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Asset is a CoinGecko coin id (e.g., "bitcoin").
type Asset string

const (
	Bitcoin  Asset = "bitcoin"
	Ethereum Asset = "ethereum"
)

// Assets lists the tracked coins in display order.
var Assets = []Asset{Bitcoin, Ethereum}

var assetMeta = map[Asset]struct{ name, ticker string }{
	Bitcoin:  {"Bitcoin", "BTC"},
	Ethereum: {"Ethereum", "ETH"},
}

// Name returns the display name, e.g. "Bitcoin".
func (a Asset) Name() string {
	if m, ok := assetMeta[a]; ok {
		return m.name
	}
	return string(a)
}

// Ticker returns the short symbol, e.g. "BTC".
func (a Asset) Ticker() string {
	if m, ok := assetMeta[a]; ok {
		return m.ticker
	}
	return string(a)
}

// Quote is the USD spot price of one asset and its 24h change in percent.
type Quote struct {
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"`
}

// Snapshot maps each tracked asset to its quote. A Snapshot returned by a
// fetch is never modified afterwards.
type Snapshot map[Asset]Quote

// ErrMissingAsset is returned when a snapshot lacks one of the tracked assets.
var ErrMissingAsset = errors.New("snapshot is missing asset")

// Validate checks that every tracked asset is present.
func (s Snapshot) Validate() error {
	for _, a := range Assets {
		if _, ok := s[a]; !ok {
			return fmt.Errorf("%w: %s", ErrMissingAsset, a)
		}
	}
	return nil
}

// PriceUpdate is a snapshot with the time it was fetched.
type PriceUpdate struct {
	Snapshot  Snapshot  `json:"prices"`
	FetchedAt time.Time `json:"fetched_at"`
}
