package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/config"
	"github.com/RodyMacay/frontend-trash-classifications/internal/logging"
	"github.com/RodyMacay/frontend-trash-classifications/internal/mockserver"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	dbPath := flag.String("db", "", "Override the SQLite database path")
	eventInterval := flag.Duration("events", -1, "Interval between generated classifications, 0 disables")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *dbPath != "" {
		cfg.Server.DBPath = *dbPath
	}
	if *eventInterval >= 0 {
		cfg.Server.EventInterval = *eventInterval
	}

	// The mock logs to stderr.
	logger, err := logging.New("", cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("mock server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	store, err := mockserver.OpenStore(cfg.Server.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broadcaster := mockserver.NewBroadcaster(store, logger)
	go broadcaster.Run(ctx, cfg.Server.SnapshotEvery)

	mockserver.NewGenerator(store, cfg.Server.EventInterval, broadcaster.Publish, logger).Start(ctx)

	server := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           mockserver.NewServer(store, broadcaster, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("mock server listening",
			zap.String("addr", server.Addr),
			zap.String("db", cfg.Server.DBPath),
			zap.Duration("event_interval", cfg.Server.EventInterval))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
