// Package app wires the feed generator together: one App value owns the
// store, the domain filter, the batch writer, the firehose consumer, and
// the ranking engine, and runs whichever halves the CLI mode asks for.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/reuning/trending-news-feed/internal/api/middleware"
	"github.com/reuning/trending-news-feed/internal/api/routes"
	"github.com/reuning/trending-news-feed/internal/atproto/firehose"
	"github.com/reuning/trending-news-feed/internal/config"
	"github.com/reuning/trending-news-feed/internal/core/domains"
	"github.com/reuning/trending-news-feed/internal/core/feeds"
	"github.com/reuning/trending-news-feed/internal/core/posts"
	"github.com/reuning/trending-news-feed/internal/db/sqlite"
)

// appViewHost is the public read API used only by the preview page.
const appViewHost = "https://public.api.bsky.app"

// App is the dependency container. Handlers and the stream consumer get
// their collaborators from here instead of package globals.
type App struct {
	cfg config.Config
	db  *sql.DB

	Repo      posts.Repository
	Filter    *domains.Filter
	Engine    *feeds.Engine
	Writer    *posts.BatchWriter
	Consumer  *firehose.Consumer
	Connector *firehose.Connector
}

// New opens the store, runs migrations, and builds the component graph.
func New(cfg config.Config) (*App, error) {
	db, err := sqlite.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	repo := sqlite.NewPostRepository(db)
	filter := domains.Load(cfg.DomainsConfig)
	engine := feeds.NewEngineFromFile(repo, cfg.RankingConfig)
	writer := posts.NewBatchWriter(repo, cfg.WriteBuffer, cfg.BatchSize, cfg.FlushInterval)
	consumer := firehose.NewConsumer(repo, writer, filter)
	connector := firehose.NewConnector(cfg.RelayHost, cfg.Workers, cfg.EventQueue, consumer)

	return &App{
		cfg:       cfg,
		db:        db,
		Repo:      repo,
		Filter:    filter,
		Engine:    engine,
		Writer:    writer,
		Consumer:  consumer,
		Connector: connector,
	}, nil
}

// Close releases the storage handle.
func (a *App) Close() error {
	return a.db.Close()
}

// RunIngest consumes the firehose until ctx is canceled.
func (a *App) RunIngest(ctx context.Context) error {
	return a.run(ctx, true, false)
}

// RunServer serves the HTTP feed until ctx is canceled.
func (a *App) RunServer(ctx context.Context) error {
	return a.run(ctx, false, true)
}

// Run does both in one process, the usual deployment.
func (a *App) Run(ctx context.Context) error {
	return a.run(ctx, true, true)
}

func (a *App) run(ctx context.Context, ingest, serve bool) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.watchReload(ctx)
		return nil
	})
	if ingest {
		g.Go(func() error {
			a.Writer.Run(ctx)
			return nil
		})
		g.Go(func() error {
			a.Consumer.LogThroughput(ctx, 5*time.Minute)
			return nil
		})
		g.Go(func() error {
			return a.Connector.Run(ctx)
		})
	}
	if serve {
		g.Go(func() error {
			return a.serveHTTP(ctx, ingest)
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveHTTP runs the feed service with graceful shutdown. includeIngest
// controls whether /stats exposes the consumer and writer counters.
func (a *App) serveHTTP(ctx context.Context, includeIngest bool) error {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	rateLimiter := middleware.NewRateLimiter(300, time.Minute)
	r.Use(rateLimiter.Middleware)

	routes.RegisterFeedRoutes(r, a.Engine, a.cfg.ServiceDID(), a.cfg.FeedName, a.cfg.FeedURI())

	deps := routes.SystemDeps{
		Repo:        a.Repo,
		Service:     a.Engine,
		Filter:      a.Filter,
		ServiceDID:  a.cfg.ServiceDID(),
		Hostname:    a.cfg.Hostname,
		AppViewHost: appViewHost,
	}
	if includeIngest {
		deps.Consumer = a.Consumer
		deps.Writer = a.Writer
	}
	routes.RegisterSystemRoutes(r, deps)

	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("feed service listening", "addr", a.cfg.ListenAddr, "did", a.cfg.ServiceDID())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

// watchReload re-reads both JSON config documents on SIGHUP. A failed
// reload keeps the running configuration.
func (a *App) watchReload(ctx context.Context) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			slog.Info("SIGHUP received, reloading config files")
			if err := a.Filter.Reload(); err != nil {
				slog.Error("domain allow-list reload failed, keeping current set", "error", err)
			}
			if err := a.Engine.Reload(); err != nil {
				slog.Error("ranking config reload failed, keeping current config", "error", err)
			}
		}
	}
}

// ClearOptions selects the administrative deletion window.
type ClearOptions struct {
	Days        int
	Start       *time.Time
	End         *time.Time
	CleanupURLs bool
}

// Clear runs the retention deletes and reports (posts deleted, urls swept).
func (a *App) Clear(ctx context.Context, opts ClearOptions) (int64, int64, error) {
	var deleted int64
	var err error

	switch {
	case opts.Days > 0:
		deleted, err = a.Repo.DeleteOldPosts(ctx, opts.Days)
	case opts.Start != nil || opts.End != nil:
		deleted, err = a.Repo.DeletePostsInPeriod(ctx, opts.Start, opts.End)
	case opts.CleanupURLs:
		// Sweep-only invocation.
	default:
		return 0, 0, errors.New("no deletion window given")
	}
	if err != nil {
		return 0, 0, fmt.Errorf("deleting posts: %w", err)
	}

	var swept int64
	if opts.CleanupURLs {
		swept, err = a.Repo.CleanupOrphanedURLs(ctx)
		if err != nil {
			return deleted, 0, fmt.Errorf("sweeping orphaned urls: %w", err)
		}
	}
	return deleted, swept, nil
}
