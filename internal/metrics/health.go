package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/nats-io/nats.go"
)

// HealthStatus represents the overall health state.
type HealthStatus struct {
	OK     bool    `json:"ok"`
	Checks []Check `json:"checks,omitempty"`
}

// Check represents an individual health check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Progress reports whether a read is live. following is false for bounded
// reads; caughtUp is true once a subscription has delivered its backlog.
type Progress func() (following, caughtUp bool)

// HealthChecker runs health probes.
type HealthChecker struct {
	natsConn *nats.Conn
	progress Progress
}

// NewHealthChecker creates a new health checker. Either argument may be nil.
func NewHealthChecker(nc *nats.Conn, progress Progress) *HealthChecker {
	return &HealthChecker{
		natsConn: nc,
		progress: progress,
	}
}

// Liveness checks if the process is alive.
func (h *HealthChecker) Liveness() HealthStatus {
	return HealthStatus{OK: true}
}

// Readiness reports ready once connected and, when following, caught up.
func (h *HealthChecker) Readiness() HealthStatus {
	status := HealthStatus{OK: true}

	if h.natsConn != nil && !h.natsConn.IsConnected() {
		status.OK = false
		status.Checks = append(status.Checks, Check{
			Name: "nats", Status: "disconnected",
		})
	} else {
		status.Checks = append(status.Checks, Check{
			Name: "nats", Status: "connected",
		})
	}

	if h.progress != nil {
		following, caughtUp := h.progress()
		switch {
		case !following:
			status.Checks = append(status.Checks, Check{Name: "catch_up", Status: "bounded"})
		case caughtUp:
			status.Checks = append(status.Checks, Check{Name: "catch_up", Status: "live"})
		default:
			status.OK = false
			status.Checks = append(status.Checks, Check{Name: "catch_up", Status: "replaying"})
		}
	}

	return status
}

func (h *HealthChecker) handle(probe func() HealthStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := probe()
		code := http.StatusOK
		if !status.OK {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(status)
	}
}
