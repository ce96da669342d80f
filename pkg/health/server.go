// Package health serves the operational HTTP surface: a health probe and
// the Prometheus metrics endpoint.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberFlowTech/wanqing/pkg/logger"
)

// Status is the snapshot reported by /healthz.
type Status struct {
	Status   string         `json:"status"`
	Channels map[string]any `json:"channels,omitempty"`
	Buffers  int            `json:"memory_buffers"`
	Locks    int            `json:"memory_locks"`
}

// StatusFunc produces the current health snapshot. It must be cheap; the
// probe may be hit every few seconds.
type StatusFunc func() Status

type Server struct {
	httpServer *http.Server
	status     StatusFunc
}

func NewServer(host string, port int, status StatusFunc) *Server {
	s := &Server{status: status}

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", host, port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start begins serving in the background. Listen errors other than a clean
// shutdown are logged, not returned; the ops surface must never take the
// bot down.
func (s *Server) Start() {
	logger.InfoCF("health", "Ops server listening", map[string]any{"addr": s.httpServer.Addr})
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorCF("health", "Ops server failed", map[string]any{"error": err.Error()})
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := Status{Status: "ok"}
	if s.status != nil {
		st = s.status()
		if st.Status == "" {
			st.Status = "ok"
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(st)
}
