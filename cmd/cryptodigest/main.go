package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cryptodigest/internal/digest"
	"cryptodigest/internal/market"
	"cryptodigest/internal/pricefeed"
	"cryptodigest/internal/scheduler"
	"cryptodigest/internal/subscriber"
	"cryptodigest/internal/web"
	"cryptodigest/pkg/coingecko"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "cryptodigest",
		Short:        "Bitcoin and Ethereum prices with a daily email digest",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default: config/config.yaml on the search path)")

	root.AddCommand(
		serveCmd(&configPath),
		sendCmd(&configPath),
		subscribeCmd(&configPath),
		unsubscribeCmd(&configPath),
		subscribersCmd(&configPath),
		pricesCmd(&configPath),
	)
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web page, the price feed and the daily scheduler",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(ctx, a)
		},
	}
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	log := a.log

	var daily *scheduler.Daily
	if cfg.Schedule.Enabled {
		at, err := scheduler.ParseTimeOfDay(cfg.Schedule.At)
		if err != nil {
			return err
		}
		loc, err := cfg.Schedule.Location()
		if err != nil {
			return err
		}
		daily = scheduler.NewDaily(at, func(ctx context.Context) error {
			_, err := a.dispatcher.RunOnce(ctx)
			return err
		},
			scheduler.WithInterval(cfg.Schedule.CheckInterval),
			scheduler.WithLocation(loc),
			scheduler.WithLogger(log),
		)
	}

	latest := market.NewLatestStore()
	poller := pricefeed.New(a.prices, latest, cfg.Server.PriceRefresh, pricefeed.WithLogger(log))

	server := web.NewServer(a.subscribers, a.dispatcher, latest,
		web.WithLogger(log),
		web.WithScheduleAt(cfg.Schedule.At),
		web.WithPriceSource(func(ctx context.Context, n coingecko.Notifier) (market.Snapshot, error) {
			return a.prices.ReportingTo(coingecko.Multi(n, coingecko.LogNotifier(log))).FetchPrices(ctx)
		}),
	)

	g, ctx := errgroup.WithContext(ctx)

	poller.Start(ctx)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := poller.Stop(stopCtx); err != nil {
			log.Warn("price poller did not stop in time", zap.Error(err))
		}
	}()

	g.Go(func() error {
		return server.Run(ctx, fmt.Sprintf(":%d", cfg.Server.Port))
	})

	if daily != nil {
		g.Go(func() error { return daily.Run(ctx) })
	} else {
		log.Info("daily scheduler disabled")
	}

	return g.Wait()
}

func sendCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "send",
		Short: "Send the digest to every subscriber once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath, true)
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.dispatcher.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if report.Skipped != "" {
				fmt.Fprintln(out, "No subscribers to send emails to.")
				return nil
			}
			for _, d := range report.Deliveries {
				if d.Err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", d.Recipient, d.Err)
					continue
				}
				fmt.Fprintf(out, "OK   %s\n", d.Recipient)
			}
			fmt.Fprintf(out, "Digest sent: %d delivered, %d failed.\n", report.Sent(), report.Failed())
			return nil
		},
	}
}

func subscribeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribe <email>",
		Short: "Add an email address to the daily digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			outcome, err := a.subscribers.Subscribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			switch outcome {
			case subscriber.InvalidEmail:
				return errors.New("please enter a valid email address")
			case subscriber.AlreadySubscribed:
				fmt.Fprintln(cmd.OutOrStdout(), "You are already subscribed!")
			default:
				fmt.Fprintln(cmd.OutOrStdout(), "Successfully subscribed to daily cryptocurrency updates!")
			}
			return nil
		},
	}
}

func unsubscribeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <email>",
		Short: "Remove an email address from the daily digest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			removed, err := a.subscribers.Unsubscribe(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not subscribed.\n", args[0])
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Unsubscribed %s.\n", args[0])
			return nil
		},
	}
}

func subscribersCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "subscribers",
		Short: "List subscribers in signup order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			emails, err := a.subscribers.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(emails) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No subscribers yet.")
				return nil
			}
			for _, e := range emails {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			return nil
		},
	}
}

func pricesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "prices",
		Short: "Fetch and print current prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath, false)
			if err != nil {
				return err
			}
			defer a.close()

			snapshot, err := a.prices.FetchPrices(cmd.Context())
			if err != nil {
				return err
			}
			for _, asset := range market.Assets {
				q := snapshot[asset]
				fmt.Fprintf(cmd.OutOrStdout(), "%-14s %16s  %8s\n",
					fmt.Sprintf("%s (%s)", asset.Name(), asset.Ticker()),
					digest.FormatUSD(q.Price),
					digest.FormatPercent(q.Change24h))
			}
			return nil
		},
	}
}
