package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"portfolioclient/internal/config"
	"portfolioclient/internal/engine"
	"portfolioclient/internal/metrics"
	"portfolioclient/internal/repository"
	"portfolioclient/internal/transport/redisbus"
	"portfolioclient/internal/transport/stomp"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// Compile-time check to ensure Database implements engine.TradeJournal
var _ engine.TradeJournal = (*repository.Database)(nil)

var errSnapshotTimeout = errors.New("timed out waiting for the positions snapshot")

// app is everything a subcommand needs: a connected controller and its view.
type app struct {
	cfg        *config.Config
	logger     *zap.Logger
	controller *engine.Controller
	view       *consoleView

	closers []func()
}

func newApp(ctx context.Context) (*app, error) {
	bootLogger, _ := zap.NewProduction()
	cfg, err := config.LoadConfig(bootLogger)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level, _ = zap.ParseAtomicLevel(cfg.Log.Level)
	logger, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, view: newConsoleView(os.Stdout, logger)}
	a.closers = append(a.closers, func() { _ = logger.Sync() })

	transport, err := a.transport()
	if err != nil {
		a.close()
		return nil, err
	}

	opts := []engine.ControllerOption{engine.WithView(a.view)}

	reg := prometheus.NewRegistry()
	opts = append(opts, engine.WithMetrics(metrics.New(reg)))
	if cfg.Metrics.Addr != "" {
		a.serveMetrics(reg)
	}

	if cfg.Database.URL != "" {
		db, err := repository.NewDatabase(ctx, cfg.Database.URL)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		if err := db.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		opts = append(opts, engine.WithJournal(db))
	}

	channels := engine.NewChannelConfig(
		cfg.Channels.Positions,
		cfg.Channels.Quotes,
		cfg.Channels.PositionUpdates,
		cfg.Channels.Errors,
		cfg.Channels.Trade,
	)
	a.controller = engine.NewController(transport, channels, logger, opts...)
	return a, nil
}

func (a *app) transport() (engine.Transport, error) {
	switch a.cfg.Transport.Kind {
	case config.TransportStomp:
		client := stomp.NewClient(a.cfg.Stomp.URL, a.logger)
		client.Login = a.cfg.Stomp.Login
		client.Passcode = a.cfg.Stomp.Passcode
		client.Host = a.cfg.Stomp.Host
		return client, nil
	case config.TransportRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		return redisbus.New(rdb, a.cfg.Redis.Identity, a.logger), nil
	default:
		return nil, fmt.Errorf("%w: unknown transport.kind %q", config.ErrInvalidConfig, a.cfg.Transport.Kind)
	}
}

func (a *app) serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}

	go func() {
		a.logger.Info("metrics server started", zap.String("addr", a.cfg.Metrics.Addr))
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	a.closers = append(a.closers, func() { _ = srv.Shutdown(context.Background()) })
}

// connect opens the session and blocks until the snapshot is loaded, showing a
// spinner meanwhile.
func (a *app) connect(ctx context.Context, timeout time.Duration) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionSetDescription("Connecting..."),
		progressbar.OptionSpinnerType(14),
	)
	defer bar.Finish()

	if err := a.controller.Connect(ctx); err != nil {
		return err
	}
	a.closers = append(a.closers, func() { _ = a.controller.Disconnect() })
	bar.Describe("Waiting for positions...")

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)
	for {
		select {
		case <-a.view.loaded:
			return nil
		case <-ticker.C:
			_ = bar.Add(1)
		case <-deadline:
			return errSnapshotTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
