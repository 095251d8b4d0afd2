package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cryptodigest/internal/digest"
	"cryptodigest/internal/market"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SubscriberSource provides the current subscriber list.
type SubscriberSource interface {
	Load(ctx context.Context) ([]string, error)
}

// PriceFetcher fetches one snapshot, retrying as it sees fit.
type PriceFetcher interface {
	FetchPrices(ctx context.Context) (market.Snapshot, error)
}

// Sender delivers one rendered message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// SenderFunc is a function adapter for Sender.
type SenderFunc func(ctx context.Context, to, subject, html string) error

func (f SenderFunc) Send(ctx context.Context, to, subject, html string) error {
	return f(ctx, to, subject, html)
}

// Delivery is the outcome for one recipient.
type Delivery struct {
	Recipient string
	Err       error
}

func (d Delivery) MarshalJSON() ([]byte, error) {
	out := struct {
		Recipient string `json:"recipient"`
		OK        bool   `json:"ok"`
		Error     string `json:"error,omitempty"`
	}{Recipient: d.Recipient, OK: d.Err == nil}
	if d.Err != nil {
		out.Error = d.Err.Error()
	}
	return json.Marshal(out)
}

// Report describes one digest run.
type Report struct {
	RunID      string     `json:"run_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
	Skipped    string     `json:"skipped,omitempty"`
	Deliveries []Delivery `json:"deliveries"`
	// Coalesced is set when the run was shared with a concurrent caller.
	Coalesced bool `json:"coalesced"`
}

func (r Report) Sent() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.Err == nil {
			n++
		}
	}
	return n
}

func (r Report) Failed() int {
	return len(r.Deliveries) - r.Sent()
}

type Dispatcher struct {
	subscribers SubscriberSource
	fetcher     PriceFetcher
	sender      Sender
	renderer    digest.Renderer
	logger      *zap.Logger
	now         func() time.Time

	group singleflight.Group
}

type Option func(*Dispatcher)

func WithRenderer(r digest.Renderer) Option {
	return func(d *Dispatcher) { d.renderer = r }
}

func WithLogger(logger *zap.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithClock sets the time source used for the digest date and report times.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(subscribers SubscriberSource, fetcher PriceFetcher, sender Sender, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		subscribers: subscribers,
		fetcher:     fetcher,
		sender:      sender,
		logger:      zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunOnce loads subscribers, fetches prices, renders one digest and sends it
// to every subscriber in order. A failed delivery is recorded and the loop
// moves on. Calls made while a run is in progress wait for it and receive
// its report instead of sending again.
func (d *Dispatcher) RunOnce(ctx context.Context) (Report, error) {
	// The run outlives a caller that goes away (e.g. a closed browser tab)
	// so a batch is never cut off halfway.
	runCtx := context.WithoutCancel(ctx)

	// fn only runs in the caller that started the flight
	leader := false
	v, err, _ := d.group.Do("run_once", func() (interface{}, error) {
		leader = true
		return d.run(runCtx)
	})
	report, _ := v.(Report)
	report.Coalesced = !leader
	return report, err
}

func (d *Dispatcher) run(ctx context.Context) (Report, error) {
	report := Report{
		RunID:     uuid.NewString(),
		StartedAt: d.now(),
	}
	log := d.logger.With(zap.String("run_id", report.RunID))

	finish := func(err error) (Report, error) {
		report.FinishedAt = d.now()
		return report, err
	}

	subscribers, err := d.subscribers.Load(ctx)
	if err != nil {
		log.Error("failed to load subscribers", zap.Error(err))
		return finish(fmt.Errorf("load subscribers: %w", err))
	}
	if len(subscribers) == 0 {
		report.Skipped = "no subscribers"
		log.Info("no subscribers to send emails to")
		return finish(nil)
	}

	snapshot, err := d.fetcher.FetchPrices(ctx)
	if err != nil {
		log.Error("failed to fetch cryptocurrency data", zap.Error(err))
		return finish(fmt.Errorf("fetch prices: %w", err))
	}

	msg, err := d.renderer.Render(snapshot, report.StartedAt)
	if err != nil {
		log.Error("failed to render digest", zap.Error(err))
		return finish(err)
	}

	report.Deliveries = make([]Delivery, 0, len(subscribers))
	for _, email := range subscribers {
		err := d.sender.Send(ctx, email, msg.Subject, msg.HTML)
		report.Deliveries = append(report.Deliveries, Delivery{Recipient: email, Err: err})
		if err != nil {
			log.Warn("failed to send email", zap.String("recipient", email), zap.Error(err))
			continue
		}
		log.Info("email sent", zap.String("recipient", email))
	}

	log.Info("digest run complete",
		zap.Int("recipients", len(subscribers)),
		zap.Int("sent", report.Sent()),
		zap.Int("failed", report.Failed()),
	)
	return finish(nil)
}
