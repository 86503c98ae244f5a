// feedgen ingests the Bluesky firehose, tracks posts that link to
// allow-listed news domains, and serves a ranked feed skeleton over XRPC.
//
// Usage:
//
//	feedgen both                      # ingest + serve (default)
//	feedgen firehose                  # ingest only
//	feedgen serve                     # serve only
//	feedgen clear --days 30           # retention maintenance
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/reuning/trending-news-feed/internal/app"
	"github.com/reuning/trending-news-feed/internal/config"
)

func main() {
	cliApp := &cli.App{
		Name:           "feedgen",
		Usage:          "trending-news feed generator for Bluesky",
		DefaultCommand: "both",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", EnvVars: []string{"DATABASE_PATH"}, Value: "feed.db", Usage: "SQLite database path"},
			&cli.StringFlag{Name: "listen", EnvVars: []string{"LISTEN_ADDR"}, Value: ":8080", Usage: "HTTP listen address"},
			&cli.StringFlag{Name: "hostname", EnvVars: []string{"FEEDGEN_HOSTNAME"}, Value: "localhost:8080", Usage: "public hostname, becomes did:web:<hostname>"},
			&cli.StringFlag{Name: "publisher-did", EnvVars: []string{"FEEDGEN_PUBLISHER_DID"}, Usage: "DID the feed record is published under (default: service DID)"},
			&cli.StringFlag{Name: "feed-name", EnvVars: []string{"FEED_RECORD_NAME"}, Value: "domain-news", Usage: "feed generator record key"},
			&cli.StringFlag{Name: "relay", EnvVars: []string{"RELAY_HOST"}, Value: "wss://bsky.network", Usage: "firehose relay host"},
			&cli.StringFlag{Name: "domains-config", EnvVars: []string{"DOMAINS_CONFIG"}, Value: "config/domains.json", Usage: "domain allow-list document"},
			&cli.StringFlag{Name: "ranking-config", EnvVars: []string{"RANKING_CONFIG"}, Value: "config/ranking.json", Usage: "ranking options document"},
			&cli.IntFlag{Name: "workers", EnvVars: []string{"FIREHOSE_WORKERS"}, Value: 100, Usage: "firehose worker pool size"},
			&cli.IntFlag{Name: "event-queue", EnvVars: []string{"FIREHOSE_QUEUE"}, Value: 1000, Usage: "firehose scheduler queue size"},
			&cli.IntFlag{Name: "write-buffer", EnvVars: []string{"WRITE_BUFFER"}, Value: 10000, Usage: "batch writer queue capacity"},
			&cli.IntFlag{Name: "batch-size", EnvVars: []string{"WRITE_BATCH_SIZE"}, Value: 100, Usage: "posts per storage batch"},
			&cli.DurationFlag{Name: "flush-interval", EnvVars: []string{"WRITE_FLUSH_INTERVAL"}, Value: 5 * time.Second, Usage: "batch writer flush interval"},
			&cli.StringFlag{Name: "log-level", EnvVars: []string{"LOG_LEVEL"}, Value: "info", Usage: "log level (debug|info)"},
		},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.String("log-level") == "debug" {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "firehose",
				Usage: "ingest the firehose without serving HTTP",
				Action: func(c *cli.Context) error {
					return runMode(c, (*app.App).RunIngest)
				},
			},
			{
				Name:  "serve",
				Usage: "serve the feed without ingesting",
				Action: func(c *cli.Context) error {
					return runMode(c, (*app.App).RunServer)
				},
			},
			{
				Name:  "both",
				Usage: "ingest and serve in one process",
				Action: func(c *cli.Context) error {
					return runMode(c, (*app.App).Run)
				},
			},
			{
				Name:  "clear",
				Usage: "delete old posts and optionally sweep orphaned urls",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "days", Usage: "delete posts older than this many days"},
					&cli.StringFlag{Name: "start-date", Usage: "window start (RFC 3339 or YYYY-MM-DD), inclusive"},
					&cli.StringFlag{Name: "end-date", Usage: "window end (RFC 3339 or YYYY-MM-DD), exclusive"},
					&cli.BoolFlag{Name: "cleanup-urls", Usage: "delete urls with no remaining posts"},
				},
				Action: runClear,
			},
		},
	}

	if err := cliApp.Run(os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func configFromFlags(c *cli.Context) config.Config {
	return config.Config{
		DatabasePath:  c.String("db"),
		ListenAddr:    c.String("listen"),
		Hostname:      c.String("hostname"),
		PublisherDID:  c.String("publisher-did"),
		FeedName:      c.String("feed-name"),
		RelayHost:     c.String("relay"),
		DomainsConfig: c.String("domains-config"),
		RankingConfig: c.String("ranking-config"),
		Workers:       c.Int("workers"),
		EventQueue:    c.Int("event-queue"),
		WriteBuffer:   c.Int("write-buffer"),
		BatchSize:     c.Int("batch-size"),
		FlushInterval: c.Duration("flush-interval"),
	}
}

// runMode builds the app and runs the chosen mode until SIGINT/SIGTERM.
func runMode(c *cli.Context, run func(*app.App, context.Context) error) error {
	a, err := app.New(configFromFlags(c))
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return run(a, ctx)
}

func runClear(c *cli.Context) error {
	opts := app.ClearOptions{
		Days:        c.Int("days"),
		CleanupURLs: c.Bool("cleanup-urls"),
	}
	if s := c.String("start-date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("invalid --start-date: %w", err)
		}
		opts.Start = &t
	}
	if s := c.String("end-date"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return fmt.Errorf("invalid --end-date: %w", err)
		}
		opts.End = &t
	}
	if opts.Days == 0 && opts.Start == nil && opts.End == nil && !opts.CleanupURLs {
		return fmt.Errorf("nothing to do: give --days, --start-date/--end-date, or --cleanup-urls")
	}

	a, err := app.New(configFromFlags(c))
	if err != nil {
		return err
	}
	defer a.Close()

	deleted, swept, err := a.Clear(c.Context, opts)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d posts\n", deleted)
	if opts.CleanupURLs {
		fmt.Printf("swept %d orphaned urls\n", swept)
	}
	return nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
