package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Timeouts for the operational HTTP endpoint.
const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// ReadyChecker reports bridge readiness for the health endpoint.
type ReadyChecker interface {
	IsReady() bool
}

// Server exposes the bridge's operational endpoints:
//
//	GET /metrics   Prometheus metrics
//	GET /healthz   liveness + readiness JSON
//
// It is not a control surface; commands flow over MQTT.
type Server struct {
	httpServer *http.Server
}

// New creates the operational HTTP server.
//
// Parameters:
//   - addr: Listen address (e.g. ":9090")
//   - registry: Prometheus registry to expose on /metrics
//   - ready: Readiness source for /healthz, may be nil
//
// Returns:
//   - *Server: Ready to Start
func New(addr string, registry *prometheus.Registry, ready ReadyChecker) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", healthzHandler(ready))

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}
}

// Start begins serving in a background goroutine. Listen errors other
// than graceful shutdown are reported through errCh, which may be nil.
func (s *Server) Start(errCh chan<- error) {
	go func() {
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) && errCh != nil {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

// Close gracefully shuts the server down, waiting up to the shutdown
// timeout for in-flight requests.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func healthzHandler(ready ReadyChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]any{"alive": true}
		if ready != nil {
			status["ready"] = ready.IsReady()
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}
}
