package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nuance-dev/convierto-sub000/internal/engine"
	"github.com/nuance-dev/convierto-sub000/internal/startup"
)

// Handlers bundles the HTTP handlers and their collaborators.
type Handlers struct {
	coord     *engine.Coordinator
	tasks     *taskRegistry
	uploadDir string
	metrics   bool
}

// New creates the handler set over the given coordinator. Uploads are
// staged under uploadDir before conversion.
func New(coord *engine.Coordinator, config *startup.Config) *Handlers {
	return &Handlers{
		coord:     coord,
		tasks:     newTaskRegistry(),
		uploadDir: config.CacheDir,
		metrics:   config.MetricsEnabled,
	}
}

// Register attaches all routes to the router.
func (h *Handlers) Register(r *mux.Router) {
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/convert", h.SubmitConversion).Methods("POST")
	api.HandleFunc("/convert/{id}", h.GetConversion).Methods("GET")
	api.HandleFunc("/convert/{id}/download", h.DownloadResult).Methods("GET")
	api.HandleFunc("/formats", h.ListFormats).Methods("GET")

	if h.metrics {
		r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	}
}

// GetVersion returns the application version and build information
func (h *Handlers) GetVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, startup.GetBuildInfo())
}
