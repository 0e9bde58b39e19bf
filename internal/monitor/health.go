package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"gomqtt-telemetry/internal/db"
	"gomqtt-telemetry/internal/mqtt"
	"gomqtt-telemetry/internal/realtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// StartHealthCheck starts the HTTP server carrying the operational surface:
// liveness, readiness, the live websocket endpoint, and prometheus metrics.
func StartHealthCheck(dbMgr *db.DBManager, channel *mqtt.Client, hub *realtime.Hub,
	reg *prometheus.Registry, logger *zap.SugaredLogger, jwtSecret string, buffer int, addr string) {

	// --- Liveness ---
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  "alive",
			Message: "Service is running",
		})
	})

	// --- Readiness ---
	http.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "application/json")

		healthDetails := make(map[string]string)
		var errors []string

		if err := dbMgr.Ping(ctx); err != nil {
			healthDetails["database"] = "unhealthy"
			errors = append(errors, fmt.Sprintf("DBManager unhealthy: %v", err))
		} else {
			healthDetails["database"] = "healthy"
		}

		status := channel.Status()
		if status.State != mqtt.StateConnected {
			healthDetails["message_channel"] = status.State.String()
			errors = append(errors, fmt.Sprintf("message channel %s (retries=%d)", status.State, status.Retries))
		} else {
			healthDetails["message_channel"] = "healthy"
		}

		statusCode := http.StatusOK
		statusMsg := "ready"
		if len(errors) > 0 {
			statusCode = http.StatusServiceUnavailable
			statusMsg = fmt.Sprintf("%d component(s) failing", len(errors))
		}

		w.WriteHeader(statusCode)
		json.NewEncoder(w).Encode(HealthResponse{
			Status:  statusMsg,
			Details: healthDetails,
		})
	})

	// --- WebSocket endpoint ---
	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		realtime.ServeWS(hub, jwtSecret, buffer, w, r)
	})

	// --- Metrics ---
	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	logger.Infof("starting health check server on %s", addr)
	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil && err != http.ErrServerClosed {
			logger.Errorw("health check server stopped", "error", err)
		}
	}()
}
