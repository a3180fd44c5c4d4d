package routes

import (
	"context"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
	"github.com/synaptica-ai/biomarkers/pkg/observability/metrics"
	"github.com/synaptica-ai/biomarkers/pkg/patient"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
	"github.com/synaptica-ai/biomarkers/pkg/storage"
)

// SourceInvalidator is implemented by caching dataset sources.
type SourceInvalidator interface {
	Invalidate()
}

// SnapshotWriter persists finished view-models.
type SnapshotWriter interface {
	Save(ctx context.Context, vm *models.ViewModel) (*storage.SnapshotModel, error)
}

type DatasetHandler struct {
	runner    Runner
	prefs     preferences.Store
	cache     ViewCache
	source    SourceInvalidator
	snapshots SnapshotWriter
}

// NewDatasetHandler wires upload and refresh. cache, source and snapshots may
// be nil.
func NewDatasetHandler(runner Runner, prefs preferences.Store, cache ViewCache, source SourceInvalidator, snapshots SnapshotWriter) *DatasetHandler {
	return &DatasetHandler{runner: runner, prefs: prefs, cache: cache, source: source, snapshots: snapshots}
}

func (h *DatasetHandler) Register(r *mux.Router) {
	r.HandleFunc("/dataset", h.handleUpload).Methods(http.MethodPost)
	r.HandleFunc("/dataset", h.handleClear).Methods(http.MethodDelete)
	r.HandleFunc("/dataset/refresh", h.handleRefresh).Methods(http.MethodPost)
}

type UploadResponse struct {
	Patients []string `json:"patients"`
	Reports  int      `json:"reports"`
}

func (h *DatasetHandler) handleUpload(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, err, "failed to read dataset")
		return
	}

	doc, err := dataset.Upload(r.Context(), h.prefs, body)
	if err != nil {
		respondError(w, err, "failed to store dataset")
		return
	}
	metrics.ObserveUpload()
	h.invalidate(r.Context())

	resp := UploadResponse{Patients: []string{}}
	for _, p := range patient.Profiles(doc) {
		resp.Patients = append(resp.Patients, p.PatientID)
		resp.Reports += len(p.Reports)
	}
	logger.Log.WithFields(map[string]interface{}{
		"patients": len(resp.Patients),
		"reports":  resp.Reports,
	}).Info("dataset uploaded")
	respondJSON(w, http.StatusCreated, resp)
}

func (h *DatasetHandler) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := dataset.ClearUpload(r.Context(), h.prefs); err != nil {
		respondError(w, err, "failed to clear dataset")
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// handleRefresh drops every cached layer, reruns the pipeline and stores the
// result as a snapshot.
func (h *DatasetHandler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	h.invalidate(r.Context())

	vm, err := h.runner.Run(r.Context())
	if err != nil {
		respondError(w, err, "failed to refresh dashboard")
		return
	}
	if h.snapshots != nil {
		if _, err := h.snapshots.Save(r.Context(), vm); err != nil {
			logger.Log.WithError(err).Error("failed to persist snapshot")
		} else {
			metrics.ObserveSnapshot()
		}
	}
	if h.cache != nil {
		if v, ok, err := h.prefs.Get(r.Context(), preferences.KeySelectedPatient); err == nil {
			key := ""
			if ok {
				key = v
			}
			if err := h.cache.Set(r.Context(), key, vm); err != nil {
				logger.Log.WithError(err).Warn("view cache write failed")
			}
		}
	}
	writeJSON(w, vm)
}

func (h *DatasetHandler) invalidate(ctx context.Context) {
	if h.source != nil {
		h.source.Invalidate()
	}
	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			logger.Log.WithError(err).Warn("failed to invalidate view cache")
		}
	}
}
