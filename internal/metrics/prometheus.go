package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gftdcojp/escat/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escat_events_received_total",
		Help: "Events pulled from the store",
	}, []string{"stream"})

	RecordsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escat_records_emitted_total",
		Help: "Records written to standard output",
	}, []string{"stream"})

	EventsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escat_events_skipped_total",
		Help: "Events not written, by reason",
	}, []string{"stream", "reason"})

	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "escat_decode_errors_total",
		Help: "Events whose payload could not be decoded",
	}, []string{"stream"})

	CaughtUp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "escat_caught_up",
		Help: "1 once a subscription has delivered its backlog",
	}, []string{"stream"})

	WriteLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "escat_write_latency_seconds",
		Help:    "Time to format and flush one record",
		Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1},
	}, []string{"stream"})
)

// RunServer binds cfg.Listen and serves until ctx is done.
func RunServer(ctx context.Context, cfg config.MetricsConfig, checker *HealthChecker) error {
	ln, err := Listen(cfg)
	if err != nil {
		return err
	}
	return Serve(ctx, ln, cfg, checker)
}

// Listen binds the metrics address without serving on it.
func Listen(cfg config.MetricsConfig) (net.Listener, error) {
	return net.Listen("tcp", cfg.Listen)
}

// Serve exposes the metrics and health endpoints on ln until ctx is done.
// ln is closed when Serve returns.
func Serve(ctx context.Context, ln net.Listener, cfg config.MetricsConfig, checker *HealthChecker) error {
	mux := http.NewServeMux()
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux.Handle(path, promhttp.Handler())
	if checker != nil {
		mux.HandleFunc("/healthz", checker.handle(checker.Liveness))
		mux.HandleFunc("/readyz", checker.handle(checker.Readiness))
	}

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
