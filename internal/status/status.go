// Package status provides the optional local status listener: a small
// HTTP surface exposing the client's own health (/healthz) and its
// Prometheus metrics (/metrics). It is meant for loopback use while the
// client runs long-lived (watch mode or scripted sessions), not as a
// public API.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// BackendChecker reports whether the remote backend answers its health
// endpoint.
type BackendChecker interface {
	PerformHealthCheck(ctx context.Context) (map[string]interface{}, error)
}

// StorageChecker reports whether the session storage is reachable.
type StorageChecker interface {
	Ping(ctx context.Context) error
}

// Handler serves the status routes.
type Handler struct {
	backend BackendChecker
	storage StorageChecker
}

// NewHandler creates a status handler over the gateway and the session
// storage backend.
func NewHandler(backend BackendChecker, storage StorageChecker) *Handler {
	return &Handler{
		backend: backend,
		storage: storage,
	}
}

// healthResponse is the /healthz body.
//
// JSON example:
//
//	{
//	  "status": "ok",
//	  "timestamp": "2024-01-20T14:30:00Z",
//	  "services": {
//	    "backend": "healthy",
//	    "storage": "healthy"
//	  }
//	}
type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Healthz checks the session storage and the remote backend and reports
// "ok" only when both answer. Either failing degrades the status to
// "degraded" with a 503, but the response body always says which side is
// unhealthy.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Services:  map[string]string{"backend": "healthy", "storage": "healthy"},
	}

	if err := h.storage.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Session storage unhealthy")
		response.Status = "degraded"
		response.Services["storage"] = "unhealthy"
	}

	if _, err := h.backend.PerformHealthCheck(ctx); err != nil {
		log.Warn().Err(err).Msg("Backend unhealthy")
		response.Status = "degraded"
		response.Services["backend"] = "unhealthy"
	}

	code := http.StatusOK
	if response.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to write health response")
	}
}

// Router builds the status route tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(10 * time.Second))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// Serve runs the status listener on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, handler *Handler) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Status listener started")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}
