package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/next-trace/scg-saas-dispatch/internal/config"
	"github.com/next-trace/scg-saas-dispatch/internal/workspace"
	"github.com/next-trace/scg-saas-dispatch/provider"
	"github.com/next-trace/scg-saas-dispatch/ratelimit"
	"github.com/next-trace/scg-saas-dispatch/ratelimit/filter"
	"github.com/next-trace/scg-saas-dispatch/ratelimit/stats"
	"github.com/next-trace/scg-saas-dispatch/servicebus"
)

func main() {
	cfgPath := flag.String("config", "", "path to config file (yaml, toml or json)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err = run(ctx, cfg, logger)

	cancel()

	if err != nil {
		logger.Error("saasd stopped", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	_ = level.UnmarshalText([]byte(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	logger.Info("saasd listening",
		"addr", cfg.Server.Addr,
		"auth_limit", cfg.RateLimit.AuthEnabled,
		"stats", cfg.Stats.Backend,
		"alerts", cfg.Alerts.Backend,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// app is the assembled process: bus, limiter and HTTP surface.
type app struct {
	bus     *servicebus.Bus
	alerts  *ratelimit.AlertForwarder
	handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	pub, err := newAlertPublisher(cfg.Alerts, logger)
	if err != nil {
		return nil, fmt.Errorf("alerts: %w", err)
	}

	reg := provider.New()
	a.bus = servicebus.New(reg, pub, logger,
		servicebus.WithMediatorOptions(servicebus.WithMiddleware(
			servicebus.CorrelationMiddleware(uuid.NewString),
			servicebus.LoggingMiddleware(logger),
		)),
	)
	a.closers = append(a.closers, a.bus.Close)

	wsOpts := workspace.Options{Logger: logger, PasswordCost: cfg.Accounts.PasswordCost}
	if err := workspace.Register(reg, workspace.NewStore(), a.bus, wsOpts); err != nil {
		a.close()
		return nil, err
	}

	if pub != nil {
		a.alerts = ratelimit.NewAlertForwarder(a.bus, cfg.Alerts.Topic, logger,
			ratelimit.WithAlertTimeout(cfg.Alerts.Timeout),
			ratelimit.WithAlertMaxInFlight(cfg.Alerts.MaxInFlight),
		)
		// drain pending alerts before the publisher closes
		a.closers = append(a.closers, func() error { a.alerts.Wait(); return nil })

		if err := reg.Register(a.alerts); err != nil {
			a.close()
			return nil, err
		}
	}

	if err := a.bus.Emitter().Discover(reg); err != nil {
		a.close()
		return nil, err
	}

	buckets := ratelimit.NewMemoryBucketStore(
		ratelimit.WithIdleTTL(cfg.RateLimit.IdleTTL),
		ratelimit.WithCleanupEvery(cfg.RateLimit.CleanupEvery),
	)
	buckets.StartJanitor(ctx)

	limiter, err := ratelimit.NewTokenBucketLimiter(buckets, cfg.Strategies())
	if err != nil {
		a.close()
		return nil, err
	}

	svc := ratelimit.NewService(limiter, a.bus, ratelimit.WithServiceLogger(logger))

	st, err := a.newStatsStore(ctx, cfg.Stats)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("stats: %w", err)
	}

	mux := routes(api{bus: a.bus, limits: svc, logger: logger})
	a.handler = filter.New(svc, filter.Options{
		Enabled:          cfg.RateLimit.AuthEnabled,
		AuthPathPrefixes: cfg.RateLimit.AuthPathPrefixes,
		Stats:            st,
		Logger:           logger,
	})(mux)

	return a, nil
}

func (a *app) newStatsStore(ctx context.Context, cfg config.StatsConfig) (stats.Store, error) {
	switch cfg.Backend {
	case "memory":
		return stats.NewMemoryStore(stats.WithTrackIdentifiers(cfg.TrackIdentifiers)), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, rdb.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		if err := rdb.Ping(pingCtx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
		}

		return stats.NewRedisStore(rdb,
			stats.WithPrefix(cfg.Redis.Prefix),
			stats.WithTTL(cfg.Redis.TTL),
			stats.WithRedisTrackIdentifiers(cfg.TrackIdentifiers),
		), nil
	default:
		return nil, nil
	}
}

// close releases owned connections in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}

	a.closers = nil
}
