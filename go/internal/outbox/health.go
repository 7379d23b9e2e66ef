package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
)

type HealthStatus struct {
	Healthy           bool      `json:"healthy"`
	LastEventTime     time.Time `json:"last_event_time"`
	EventsProcessed   uint64    `json:"events_processed"`
	PendingEvents     int       `json:"pending_events"`
	DatabaseConnected bool      `json:"database_connected"`
	NATSConnected     bool      `json:"nats_connected"`
	RelayActive       bool      `json:"relay_active"`
	Errors            []string  `json:"errors"`
}

// Pinger is satisfied by *sql.DB and the memory store.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PendingCounter is satisfied by *App.
type PendingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// RelayStats is satisfied by *Worker.
type RelayStats interface {
	Running() bool
	Stats() (uint64, time.Time)
}

type HealthChecker struct {
	relay     RelayStats
	db        Pinger
	pending   PendingCounter
	natsConn  *nats.Conn
	clock     clockwork.Clock
	threshold time.Duration // How long pending events may sit before unhealthy
}

func NewHealthChecker(relay RelayStats, db Pinger, pending PendingCounter, natsConn *nats.Conn, clock clockwork.Clock, threshold time.Duration) *HealthChecker {
	return &HealthChecker{
		relay:     relay,
		db:        db,
		pending:   pending,
		natsConn:  natsConn,
		clock:     clock,
		threshold: threshold,
	}
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy: true,
		Errors:  []string{},
	}

	status.EventsProcessed, status.LastEventTime = h.relay.Stats()

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.natsConn != nil {
		status.NATSConnected = h.natsConn.IsConnected()
		if !status.NATSConnected {
			status.Healthy = false
			status.Errors = append(status.Errors, "NATS disconnected")
		}
	}

	status.RelayActive = h.relay.Running()
	if !status.RelayActive {
		status.Healthy = false
		status.Errors = append(status.Errors, "relay not active")
	}

	if status.DatabaseConnected {
		pending, err := h.pending.CountPending(ctx)
		if err != nil {
			status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending events: %v", err))
		} else {
			status.PendingEvents = pending
			if pending > 1000 {
				status.Errors = append(status.Errors, fmt.Sprintf("high pending event count: %d", pending))
			}
		}
	}

	// only stale if something is actually waiting
	if status.PendingEvents > 0 && !status.LastEventTime.IsZero() {
		since := h.clock.Since(status.LastEventTime)
		if since > h.threshold {
			status.Healthy = false
			status.Errors = append(status.Errors, fmt.Sprintf("no events processed for %s", since))
		}
	}

	return status
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
