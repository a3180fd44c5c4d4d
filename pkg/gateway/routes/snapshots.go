package routes

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/storage"
)

type SnapshotReader interface {
	Latest(ctx context.Context, patientID string) (*models.ViewModel, error)
	History(ctx context.Context, patientID string, limit int) ([]storage.SnapshotSummary, error)
}

type SnapshotsHandler struct {
	repo SnapshotReader
}

func NewSnapshotsHandler(repo SnapshotReader) *SnapshotsHandler {
	return &SnapshotsHandler{repo: repo}
}

func (h *SnapshotsHandler) Register(r *mux.Router) {
	r.HandleFunc("/snapshots", h.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/snapshots/latest", h.handleLatest).Methods(http.MethodGet)
}

func (h *SnapshotsHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(w, "limit must be an integer")
			return
		}
		limit = v
	}

	items, err := h.repo.History(r.Context(), r.URL.Query().Get("patient_id"), limit)
	if err != nil {
		respondError(w, err, "failed to list snapshots")
		return
	}
	writeJSON(w, items)
}

func (h *SnapshotsHandler) handleLatest(w http.ResponseWriter, r *http.Request) {
	patientID := r.URL.Query().Get("patient_id")
	if patientID == "" {
		badRequest(w, "patient_id is required")
		return
	}
	vm, err := h.repo.Latest(r.Context(), patientID)
	if errors.Is(err, storage.ErrSnapshotNotFound) {
		respondJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		respondError(w, err, "failed to load snapshot")
		return
	}
	writeJSON(w, vm)
}
