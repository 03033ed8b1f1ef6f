package natsutil

import (
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gftdcojp/escat/internal/config"
	"github.com/nats-io/nats-server/v2/server"
	"go.uber.org/zap"
)

func startAuthNATS(t *testing.T, user, pass string) *server.Server {
	t.Helper()
	opts := &server.Options{
		Host:     "127.0.0.1",
		Port:     -1,
		Username: user,
		Password: pass,
		NoLog:    true,
		NoSigs:   true,
		StoreDir: filepath.Join(t.TempDir(), "jetstream"),
	}
	ns, err := server.NewServer(opts)
	if err != nil {
		t.Fatalf("failed to create nats-server: %v", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		t.Fatal("nats-server failed to start")
	}
	t.Cleanup(func() { ns.Shutdown() })
	return ns
}

func connCfg(t *testing.T, ns *server.Server) config.ConnectionConfig {
	t.Helper()
	addr, ok := ns.Addr().(*net.TCPAddr)
	if !ok {
		t.Fatalf("unexpected listener address %v", ns.Addr())
	}
	cfg := config.DefaultConfig().Connection
	cfg.Host = "127.0.0.1"
	cfg.Port = addr.Port
	cfg.ConnectTimeout = config.Duration(2 * time.Second)
	return cfg
}

func TestConnect_WithCredentials(t *testing.T) {
	ns := startAuthNATS(t, "admin", "changeit")
	cfg := connCfg(t, ns)
	cfg.Username = "admin"
	cfg.Password = "changeit"

	nc, err := Connect(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer nc.Close()
	if !nc.IsConnected() {
		t.Fatal("expected connected client")
	}
}

func TestConnect_RejectedCredentials(t *testing.T) {
	ns := startAuthNATS(t, "admin", "changeit")
	cfg := connCfg(t, ns)
	cfg.Username = "admin"
	cfg.Password = "wrong"

	nc, err := Connect(cfg, zap.NewNop())
	if err == nil {
		nc.Close()
		t.Fatal("expected authorization failure")
	}
}

func TestConnect_NoServer(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	cfg := config.DefaultConfig().Connection
	cfg.Host = "127.0.0.1:" + strconv.Itoa(port)
	cfg.ConnectTimeout = config.Duration(500 * time.Millisecond)

	nc, err := Connect(cfg, zap.NewNop())
	if err == nil {
		nc.Close()
		t.Fatal("expected connection error")
	}
	want := fmt.Sprintf("nats://127.0.0.1:%d", port)
	if got := err.Error(); !strings.Contains(got, want) {
		t.Errorf("error %q should name %s", got, want)
	}
}

func TestOptions_BadNKeyFile(t *testing.T) {
	cfg := config.DefaultConfig().Connection
	cfg.NKeySeedFile = filepath.Join(t.TempDir(), "missing.nk")
	if _, err := Options(cfg, zap.NewNop()); err == nil {
		t.Fatal("expected error for missing nkey seed file")
	}
}
