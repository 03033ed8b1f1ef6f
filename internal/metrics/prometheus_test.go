package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gftdcojp/escat/internal/config"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(url)
		if err == nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			return resp.StatusCode, string(body)
		}
		if time.Now().After(deadline) {
			t.Fatalf("GET %s: %v", url, err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestRunServer(t *testing.T) {
	// Vec metrics only show up after WithLabelValues() is called.
	EventsReceived.WithLabelValues("orders").Add(0)
	RecordsEmitted.WithLabelValues("orders").Add(0)
	EventsSkipped.WithLabelValues("orders", "shape").Add(0)
	DecodeErrors.WithLabelValues("orders").Add(0)
	CaughtUp.WithLabelValues("orders").Set(0)
	WriteLatency.WithLabelValues("orders").Observe(0)

	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	checker := NewHealthChecker(nil, func() (bool, bool) { return true, false })
	go func() {
		errc <- RunServer(ctx, config.MetricsConfig{Listen: addr, Path: "/stats"}, checker)
	}()

	code, body := get(t, "http://"+addr+"/stats")
	if code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", code)
	}
	for _, name := range []string{
		"escat_events_received_total",
		"escat_records_emitted_total",
		"escat_events_skipped_total",
		"escat_decode_errors_total",
		"escat_caught_up",
		"escat_write_latency_seconds",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("expected metrics to contain %q", name)
		}
	}

	if code, _ := get(t, "http://"+addr+"/healthz"); code != http.StatusOK {
		t.Errorf("healthz: expected 200, got %d", code)
	}
	if code, body := get(t, "http://"+addr+"/readyz"); code != http.StatusServiceUnavailable || !strings.Contains(body, "replaying") {
		t.Errorf("readyz: expected 503 replaying, got %d %s", code, body)
	}

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("RunServer: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("RunServer did not stop after cancellation")
	}
}

func TestRunServer_ListenError(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	err = RunServer(context.Background(), config.MetricsConfig{Listen: l.Addr().String()}, nil)
	if err == nil {
		t.Fatal("expected error for an address in use")
	}
}

func TestListen_BindsBeforeServe(t *testing.T) {
	addr := freeAddr(t)
	cfg := config.MetricsConfig{Listen: addr}
	ln, err := Listen(cfg)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}

	if _, err := Listen(cfg); err == nil {
		t.Fatal("expected the bound address to be unavailable")
	}

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- Serve(ctx, ln, cfg, nil) }()

	if code, _ := get(t, "http://"+addr+"/metrics"); code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", code)
	}
	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not stop after cancellation")
	}
}
