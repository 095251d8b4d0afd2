package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptodigest/config"
	"cryptodigest/internal/digest"
	"cryptodigest/internal/dispatch"
	"cryptodigest/internal/subscriber"
	"cryptodigest/logger"
	"cryptodigest/pkg/coingecko"
	"cryptodigest/pkg/resend"
	"cryptodigest/pkg/ses"
	"cryptodigest/pkg/storage/filestore"
	"cryptodigest/pkg/storage/postgres"

	"go.uber.org/zap"
)

// app holds the wired dependencies shared by every command.
type app struct {
	cfg         *config.Config
	log         *zap.Logger
	prices      *coingecko.RESTClient
	subscribers *subscriber.Service
	dispatcher  *dispatch.Dispatcher // nil unless built with a sender

	closers []func() error
}

// newApp loads config, builds the logger, the subscriber store and the
// price client. withSender additionally resolves the email secret and
// builds the dispatcher; a missing API key is fatal there.
func newApp(ctx context.Context, configPath string, withSender bool) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	a := &app{cfg: cfg, log: log}

	store, err := a.subscriberStore()
	if err != nil {
		a.close()
		return nil, err
	}
	a.subscribers = subscriber.NewService(store, log)

	a.prices = coingecko.NewRESTClient(cfg.CoinGecko.BaseURL, cfg.CoinGecko.Timeout,
		coingecko.WithRetry(cfg.CoinGecko.MaxRetries, cfg.CoinGecko.RetryDelay),
		coingecko.WithLogger(log),
		coingecko.WithNotifier(coingecko.LogNotifier(log)),
	)

	if !withSender {
		return a, nil
	}

	if err := cfg.ResolveSecrets(ctx, nil); err != nil {
		a.close()
		if errors.Is(err, config.ErrMissingAPIKey) {
			log.Error("email api key missing", zap.Error(err))
		}
		return nil, err
	}

	sender, err := a.sender(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	// digests are dated in the schedule's zone, not the host's
	loc, err := cfg.Schedule.Location()
	if err != nil {
		a.close()
		return nil, err
	}

	a.dispatcher = dispatch.New(store, a.prices, sender,
		dispatch.WithRenderer(digest.Renderer{Subject: cfg.Email.Subject}),
		dispatch.WithLogger(log),
		dispatch.WithClock(clockIn(loc)),
	)
	return a, nil
}

// clockIn returns a time source that reports the current time in loc.
func clockIn(loc *time.Location) func() time.Time {
	return func() time.Time { return time.Now().In(loc) }
}

func (a *app) subscriberStore() (subscriber.Store, error) {
	switch a.cfg.Store.Driver {
	case config.DriverPostgres:
		client, err := postgres.InitializeAndMigrate(a.cfg.Postgres, true)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to DB: %w", err)
		}
		a.closers = append(a.closers, client.Close)
		a.log.Info("using postgres subscriber store",
			zap.String("host", a.cfg.Postgres.Host),
			zap.String("dbname", a.cfg.Postgres.DBName))
		return postgres.NewSubscriberStore(client), nil
	default:
		a.log.Info("using file subscriber store", zap.String("path", a.cfg.Store.File.Path))
		return filestore.New(a.cfg.Store.File.Path, a.log), nil
	}
}

func (a *app) sender(ctx context.Context) (dispatch.Sender, error) {
	email := a.cfg.Email
	switch email.Provider {
	case config.ProviderSES:
		client, err := ses.NewClient(ctx, email.SES.Region, email.SES.From)
		if err != nil {
			return nil, fmt.Errorf("failed to create ses client: %w", err)
		}
		return client, nil
	default:
		return resend.NewClient(email.Resend.BaseURL, email.Resend.APIKey, email.Resend.From, email.Resend.Timeout), nil
	}
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			a.log.Warn("failed to close resource", zap.Error(err))
		}
	}
	_ = a.log.Sync()
}
