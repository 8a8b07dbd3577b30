package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the console's counters. Fields are updated with atomics from
// any goroutine and exported as gauge funcs on a private registry.
type Metrics struct {
	// Frame sampler
	TicksSubmitted atomic.Uint64
	TicksBusy      atomic.Uint64
	TicksNotReady  atomic.Uint64
	EncodeErrors   atomic.Uint64

	// Classification client
	ClassifyRequests  atomic.Uint64
	ClassifyFailures  atomic.Uint64
	ClassifyLatencyMs atomic.Uint64 // last request

	// Session poller
	ActivePolls      atomic.Uint64
	ActiveMisses     atomic.Uint64 // polls that resolved to "no active session"
	CompletedFetches atomic.Uint64
	CompletedErrors  atomic.Uint64
	PushUpdates      atomic.Uint64

	// Session controller commands
	StartCommands atomic.Uint64
	StartFailures atomic.Uint64
	StopCommands  atomic.Uint64
	StopFailures  atomic.Uint64

	// Capture source
	FramesRead atomic.Uint64
	ReadErrors atomic.Uint64

	registry *prometheus.Registry
}

// New creates a Metrics instance with its collectors registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	gauges := []struct {
		name, help string
		v          *atomic.Uint64
	}{
		{"clasificador_sampler_ticks_submitted_total", "Sampler ticks that submitted a frame", &m.TicksSubmitted},
		{"clasificador_sampler_ticks_busy_total", "Sampler ticks skipped because a request was in flight", &m.TicksBusy},
		{"clasificador_sampler_ticks_not_ready_total", "Sampler ticks skipped because the capture surface had no size", &m.TicksNotReady},
		{"clasificador_sampler_encode_errors_total", "Frames that failed JPEG encoding", &m.EncodeErrors},
		{"clasificador_classify_requests_total", "Classification requests sent", &m.ClassifyRequests},
		{"clasificador_classify_failures_total", "Classification requests that failed", &m.ClassifyFailures},
		{"clasificador_classify_latency_ms", "Latency of the last classification request in milliseconds", &m.ClassifyLatencyMs},
		{"clasificador_active_polls_total", "Active-session polls issued", &m.ActivePolls},
		{"clasificador_active_misses_total", "Active-session polls that found no active session", &m.ActiveMisses},
		{"clasificador_completed_fetches_total", "Completed-session fetches issued", &m.CompletedFetches},
		{"clasificador_completed_errors_total", "Completed-session fetches that failed", &m.CompletedErrors},
		{"clasificador_push_updates_total", "Active-session updates received over push", &m.PushUpdates},
		{"clasificador_start_commands_total", "Start-session commands sent", &m.StartCommands},
		{"clasificador_start_failures_total", "Start-session commands that failed", &m.StartFailures},
		{"clasificador_stop_commands_total", "Stop-session commands sent", &m.StopCommands},
		{"clasificador_stop_failures_total", "Stop-session commands that failed", &m.StopFailures},
		{"clasificador_capture_frames_read_total", "Frames read from the capture source", &m.FramesRead},
		{"clasificador_capture_read_errors_total", "Capture source read errors", &m.ReadErrors},
	}
	for _, g := range gauges {
		v := g.v
		m.registry.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: g.name, Help: g.help},
			func() float64 { return float64(v.Load()) },
		))
	}
}

// ObserveClassify records one classification round trip.
func (m *Metrics) ObserveClassify(d time.Duration, err error) {
	m.ClassifyRequests.Add(1)
	m.ClassifyLatencyMs.Store(uint64(d.Milliseconds()))
	if err != nil {
		m.ClassifyFailures.Add(1)
	}
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
