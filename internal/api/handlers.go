package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/igwedaniel/dripper/internal/config"
	"github.com/igwedaniel/dripper/internal/messaging"
	"github.com/igwedaniel/dripper/internal/metrics"
	"github.com/igwedaniel/dripper/internal/types"
	"github.com/sirupsen/logrus"
)

// StatsSource reports the progress of one workflow
type StatsSource interface {
	Snapshot() types.WorkflowStats
}

// Pinger is a dependency the health check probes
type Pinger interface {
	Ping(ctx context.Context) error
}

const pingTimeout = 2 * time.Second

// Handlers contains HTTP handlers for the API
type Handlers struct {
	stats    []StatsSource
	deps     map[string]Pinger
	networks config.Networks
	hub      *messaging.Hub
	logger   *logrus.Logger
	upgrader websocket.Upgrader
}

// NewHandlers creates new API handlers
func NewHandlers(networks config.Networks, hub *messaging.Hub, logger *logrus.Logger, stats ...StatsSource) *Handlers {
	return &Handlers{
		stats:    stats,
		deps:     make(map[string]Pinger),
		networks: networks,
		hub:      hub,
		logger:   logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Errorf("Failed to encode response: %v", err)
	}
}

// AddDependency registers a backend that /health pings
func (h *Handlers) AddDependency(name string, p Pinger) {
	h.deps[name] = p
}

// HealthCheck returns the health status of the service and its dependencies
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status, code := "healthy", http.StatusOK
	deps := make(map[string]string, len(h.deps))

	for name, dep := range h.deps {
		ctx, cancel := context.WithTimeout(r.Context(), pingTimeout)
		err := dep.Ping(ctx)
		cancel()
		if err != nil {
			h.logger.Warnf("Health check for %s failed: %v", name, err)
			deps[name] = err.Error()
			status, code = "unhealthy", http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	h.writeJSON(w, code, map[string]interface{}{
		"status":       status,
		"service":      "dripper",
		"dependencies": deps,
	})
}

// GetWorkflowStats returns statistics for every running workflow
func (h *Handlers) GetWorkflowStats(w http.ResponseWriter, r *http.Request) {
	stats := make([]types.WorkflowStats, 0, len(h.stats))
	for _, s := range h.stats {
		stats = append(stats, s.Snapshot())
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   stats,
	})
}

// GetNetworks lists the configured network profiles
func (h *Handlers) GetNetworks(w http.ResponseWriter, r *http.Request) {
	networks := make([]types.NetworkProfile, 0, len(h.networks))
	for _, key := range h.networks.Keys() {
		profile := h.networks[key]
		profile.RPC = ""
		networks = append(networks, profile)
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data": map[string]interface{}{
			"networks": networks,
		},
	})
}

// GetRecentEvents returns the latest workflow events, ?limit=N
func (h *Handlers) GetRecentEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"data":   h.hub.Recent(limit),
	})
}

// StreamEvents upgrades to a websocket and forwards every published event
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.hub.Subscribe(64)
	defer cancel()

	metrics.WSClients.Inc()
	defer metrics.WSClients.Dec()

	// the read side only watches for the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.logger.Debugf("Websocket write failed: %v", err)
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
