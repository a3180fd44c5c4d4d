package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/biomarkers/pkg/observability/metrics"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type MetricsHandler struct {
	checks map[string]HealthCheck
}

func NewMetricsHandler(checks map[string]HealthCheck) *MetricsHandler {
	return &MetricsHandler{checks: checks}
}

func (h *MetricsHandler) Register(r *mux.Router) {
	r.HandleFunc("/metrics", h.handlePrometheus).Methods(http.MethodGet)
	r.HandleFunc("/metrics/overview", h.handleOverview).Methods(http.MethodGet)
	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

func (h *MetricsHandler) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	metrics.WritePrometheus(w)
}

func (h *MetricsHandler) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, metrics.Counters())
}

type HealthResponse struct {
	Status       string            `json:"status"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func (h *MetricsHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "healthy"}
	status := http.StatusOK
	if len(h.checks) > 0 {
		resp.Dependencies = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			resp.Dependencies[name] = err.Error()
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Dependencies[name] = "ok"
	}
	respondJSON(w, status, resp)
}
