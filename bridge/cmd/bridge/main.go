package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/brewbridge/brewbridge/bridge/internal/alerts"
	"github.com/brewbridge/brewbridge/bridge/internal/api"
	"github.com/brewbridge/brewbridge/bridge/internal/brewbrain"
	"github.com/brewbridge/brewbridge/bridge/internal/config"
	"github.com/brewbridge/brewbridge/bridge/internal/host"
	"github.com/brewbridge/brewbridge/bridge/internal/integration"
	"github.com/brewbridge/brewbridge/bridge/internal/security"
	"github.com/brewbridge/brewbridge/bridge/internal/ws"
	"github.com/brewbridge/brewbridge/pkg/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	slog.Info("brewbridge starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"base_url", cfg.Bridge.BaseURL,
		"scan_interval", cfg.Bridge.ScanInterval,
		"accounts", len(cfg.Bridge.Accounts),
		"http_port", cfg.Bridge.HTTPPort,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// The factory reads the latest config so reloaded clients pick up base_url
	// and request_timeout.
	var current atomic.Pointer[config.BridgeConfig]
	current.Store(&cfg.Bridge)
	newClient := func(e integration.Entry) integration.Client {
		b := current.Load()
		return brewbrain.New(b.BaseURL,
			brewbrain.WithTimeout(b.RequestTimeout),
			brewbrain.WithLogger(logger.With("entry", e.ID)),
		)
	}

	h := host.New(logger)

	// Alerts engine, evaluated after every scheduled refresh.
	alertEngine := alerts.New(cfg.Alerts, logger)
	h.OnRefresh(alertEngine.Evaluate)

	// WebSocket hub, pushed on every tick and after every refresh.
	hub := ws.New(h, cfg.Bridge.WSInterval, logger)
	h.OnRefresh(hub.Notify)
	go hub.Run(ctx)

	// Certificate monitor for the service endpoint, checked once per scan interval.
	certs := security.NewMonitor(cfg.Bridge.BaseURL, nil, logger)
	go certs.Run(ctx, cfg.Bridge.ScanInterval)

	mgr := integration.NewManager(h, newClient, logger)
	if errs := mgr.Apply(ctx, toEntries(&cfg.Bridge)); len(errs) > 0 {
		slog.Warn("some accounts failed to set up; they are retried on the next config change",
			"failed", len(errs))
	}
	slog.Info("accounts ready", "entries", mgr.Entries())

	go func() {
		err := config.Watch(ctx, *configPath, logger, func(c *config.Config) {
			current.Store(&c.Bridge)
			alertEngine.Update(c.Alerts)
			certs.SetEndpoint(c.Bridge.BaseURL)
			errs := mgr.Apply(ctx, toEntries(&c.Bridge))
			slog.Info("config reloaded", "entries", mgr.Entries(), "failed", len(errs))
		})
		if err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	handler := api.New(h, api.WithAlerts(alertEngine), api.WithCerts(certs))
	httpMux := http.NewServeMux()
	httpMux.Handle("/api/", handler)
	httpMux.Handle("/metrics", handler)
	httpMux.Handle("/ws/stream", hub)

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Bridge.HTTPPort),
		Handler:           httpMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Bridge.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("brewbridge shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	mgr.Close()
	h.Wait()
	alertEngine.Wait()
}

// toEntries maps configured accounts to integration entries.
func toEntries(b *config.BridgeConfig) []integration.Entry {
	out := make([]integration.Entry, 0, len(b.Accounts))
	for _, a := range b.Accounts {
		out = append(out, integration.Entry{
			ID:          a.ID,
			Title:       a.Title(),
			Credentials: types.Credentials{Username: a.Username, Password: a.Password()},
			Interval:    b.ScanInterval,
			Concurrency: b.Concurrency,
		})
	}
	return out
}
