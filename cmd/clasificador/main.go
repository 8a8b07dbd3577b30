package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/RodyMacay/frontend-trash-classifications/internal/app"
	"github.com/RodyMacay/frontend-trash-classifications/internal/capture"
	"github.com/RodyMacay/frontend-trash-classifications/internal/client"
	"github.com/RodyMacay/frontend-trash-classifications/internal/config"
	"github.com/RodyMacay/frontend-trash-classifications/internal/logging"
	"github.com/RodyMacay/frontend-trash-classifications/internal/metrics"
	"github.com/RodyMacay/frontend-trash-classifications/internal/sampler"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	baseURL := flag.String("url", "", "Override the classification service base URL")
	pushURL := flag.String("push", "", "Override the WebSocket push URL")
	mode := flag.String("mode", "", "Sampler mode: continuous or single")
	source := flag.String("source", "", "Capture source: synthetic, mjpeg, file or device")
	metricsAddr := flag.String("metrics", "", "Expose Prometheus metrics on this address")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}
	if *baseURL != "" {
		cfg.Service.BaseURL = *baseURL
	}
	if *pushURL != "" {
		cfg.Service.PushURL = *pushURL
	}
	if *mode != "" {
		cfg.Sampler.Mode = *mode
	}
	if *source != "" {
		cfg.Capture.Source = *source
	}
	if *metricsAddr != "" {
		cfg.Metrics.Addr = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.Metrics.Addr); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	svc := client.NewHTTPClient(cfg.Service.BaseURL, cfg.Service.Timeout, logger, m)
	var push *client.WSClient
	if cfg.Service.PushURL != "" {
		push = client.NewWSClient(cfg.Service.PushURL, logger, m)
	}

	device, driver, err := capture.FromConfig(cfg.Capture)
	if err != nil {
		logger.Error("capture config rejected", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Capture: %v\n", err)
		return 1
	}

	logger.Info("console starting",
		zap.String("base_url", cfg.Service.BaseURL),
		zap.String("capture", device),
		zap.String("mode", cfg.Sampler.Mode))

	model := app.New(app.Options{
		Service: svc,
		Push:    push,
		Driver:  driver,
		Device:  device,
		Sampler: sampler.Options{
			Mode:        sampler.ParseMode(cfg.Sampler.Mode),
			Interval:    cfg.Sampler.Interval,
			Region:      cfg.Sampler.Region,
			JPEGQuality: cfg.Sampler.JPEGQuality,
		},
		ActiveInterval: cfg.Poller.ActiveInterval,
		BaseURL:        cfg.Service.BaseURL,
		Logger:         logger,
		Metrics:        m,
	})

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("console exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	logger.Info("console stopped")
	return 0
}
