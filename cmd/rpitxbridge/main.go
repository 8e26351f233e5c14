// ABOUTME: Main entry point for the rpitx audio bridge
// ABOUTME: Loads config, starts the bridge, runs the HTTP control surface
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harper/rpitx-bridge/internal/application/config"
	"github.com/harper/rpitx-bridge/internal/application/logging"
	"github.com/harper/rpitx-bridge/internal/application/manager"
	"github.com/harper/rpitx-bridge/internal/infrastructure/http"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run() error {
	// Load config
	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.Configure(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}

	mgr, err := manager.NewFromConfig(cfg, logger)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}

	if err := mgr.Start(); err != nil {
		mgr.Shutdown()
		return fmt.Errorf("start bridge: %w", err)
	}

	// Setup HTTP routes
	settingsHandler := http.NewSettingsHandler(mgr)

	mux := nethttp.NewServeMux()
	mux.Handle("/settings", settingsHandler)
	mux.Handle("/settings/", settingsHandler)
	mux.Handle("/status", http.NewStatusHandler(mgr))
	mux.Handle("/monitor", http.NewMonitorHandler(mgr, logger.With("component", "monitor")))
	mux.HandleFunc("/healthz", http.HealthzHandler)

	addr := fmt.Sprintf("%s:%d", cfg.Listen.Host, cfg.Listen.Port)
	srv := &nethttp.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Monitor websockets are long-lived
		IdleTimeout:  0,
		BaseContext: func(_ net.Listener) context.Context {
			return context.Background()
		},
	}

	// Graceful shutdown
	shutdown := make(chan error, 1)
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		logger.Info("shutting down")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		shutdown <- srv.Shutdown(ctx)
	}()

	logger.Info("listening", "addr", addr, "card", "rpitx", "fifo", cfg.Device.FIFOPath, "transmitter", cfg.Transmitter.Enabled)
	if err := srv.ListenAndServe(); err != nil && err != nethttp.ErrServerClosed {
		mgr.Shutdown()
		return fmt.Errorf("http server: %w", err)
	}

	if err := <-shutdown; err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := mgr.Shutdown(); err != nil {
		return fmt.Errorf("shutdown bridge: %w", err)
	}

	slog.Info("shutdown complete")
	return nil
}
