package pricefeed

import (
	"context"
	"sync"
	"time"

	"cryptodigest/internal/market"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Fetcher fetches one price snapshot.
type Fetcher interface {
	FetchPrices(ctx context.Context) (market.Snapshot, error)
}

// Poller periodically refreshes the latest snapshot in a market.LatestStore.
// A failed fetch is logged and the previous snapshot stays in place.
type Poller struct {
	fetcher  Fetcher
	store    *market.LatestStore
	interval time.Duration
	clock    clock.WithTicker
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Poller)

func WithClock(c clock.WithTicker) Option {
	return func(p *Poller) { p.clock = c }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Poller) { p.logger = logger }
}

func New(fetcher Fetcher, store *market.LatestStore, interval time.Duration, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		store:    store,
		interval: interval,
		clock:    clock.RealClock{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins the polling loop. The first fetch happens immediately.
func (p *Poller) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run(ctx)

	p.logger.Info("price poller started", zap.Duration("interval", p.interval))
}

// Stop cancels the loop and waits for it to exit or for ctx to expire.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("price poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.Refresh(ctx)
		}
	}
}

// Refresh fetches once and stores the result. It reports whether the store
// was updated.
func (p *Poller) Refresh(ctx context.Context) bool {
	snapshot, err := p.fetcher.FetchPrices(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.logger.Warn("price refresh failed, keeping previous snapshot", zap.Error(err))
		}
		return false
	}
	if err := snapshot.Validate(); err != nil {
		p.logger.Warn("price refresh returned incomplete snapshot", zap.Error(err))
		return false
	}

	p.store.Set(snapshot, p.clock.Now())
	p.logger.Debug("prices refreshed",
		zap.String("bitcoin", snapshot[market.Bitcoin].Price.String()),
		zap.String("ethereum", snapshot[market.Ethereum].Price.String()))
	return true
}
