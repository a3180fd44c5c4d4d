package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
)

type PreferencesHandler struct {
	prefs preferences.Store
	cache ViewCache
}

func NewPreferencesHandler(prefs preferences.Store, cache ViewCache) *PreferencesHandler {
	return &PreferencesHandler{prefs: prefs, cache: cache}
}

func (h *PreferencesHandler) Register(r *mux.Router) {
	r.HandleFunc("/preferences", h.handleGet).Methods(http.MethodGet)
	r.HandleFunc("/preferences/patient", h.handleSelectPatient).Methods(http.MethodPut)
	r.HandleFunc("/preferences/ranges/{biomarker}", h.handleSetRange).Methods(http.MethodPut)
	r.HandleFunc("/preferences/notes", h.handleNotes).Methods(http.MethodPut)
	r.HandleFunc("/preferences/privacy", h.handlePrivacy).Methods(http.MethodPut)
	r.HandleFunc("/preferences/theme", h.handleTheme).Methods(http.MethodPut)
}

type PreferencesResponse struct {
	SelectedPatientID string                  `json:"selected_patient_id,omitempty"`
	CustomRanges      map[string]models.Range `json:"custom_ranges,omitempty"`
	ClinicianNotes    string                  `json:"clinician_notes,omitempty"`
	Theme             string                  `json:"theme,omitempty"`
	Anonymize         bool                    `json:"anonymize"`
}

func (h *PreferencesHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	snap := preferences.Read(r.Context(), h.prefs)
	writeJSON(w, PreferencesResponse{
		SelectedPatientID: snap.SelectedPatientID,
		CustomRanges:      snap.CustomRanges,
		ClinicianNotes:    snap.ClinicianNotes,
		Theme:             snap.Theme,
		Anonymize:         snap.Anonymize,
	})
}

type selectPatientRequest struct {
	PatientID string `json:"patient_id"`
}

func (h *PreferencesHandler) handleSelectPatient(w http.ResponseWriter, r *http.Request) {
	var req selectPatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	h.store(w, r, preferences.KeySelectedPatient, strings.TrimSpace(req.PatientID))
}

func (h *PreferencesHandler) handleSetRange(w http.ResponseWriter, r *http.Request) {
	biomarker := strings.TrimSpace(mux.Vars(r)["biomarker"])
	var rng struct {
		Min *float64 `json:"min"`
		Max *float64 `json:"max"`
	}
	if err := json.NewDecoder(r.Body).Decode(&rng); err != nil || rng.Min == nil || rng.Max == nil {
		badRequest(w, "min and max are required")
		return
	}
	if *rng.Min > *rng.Max {
		badRequest(w, "min must not exceed max")
		return
	}

	if err := preferences.SetCustomRange(r.Context(), h.prefs, biomarker, models.Range{Min: *rng.Min, Max: *rng.Max}); err != nil {
		respondError(w, err, "failed to store reference range")
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *PreferencesHandler) handleNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	h.store(w, r, preferences.KeyClinicianNotes, req.Notes)
}

type privacyRequest struct {
	Anonymize bool `json:"anonymize"`
}

func (h *PreferencesHandler) handlePrivacy(w http.ResponseWriter, r *http.Request) {
	var req privacyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	h.store(w, r, preferences.KeyAnonymize, strconv.FormatBool(req.Anonymize))
}

type themeRequest struct {
	Theme string `json:"theme"`
}

func (h *PreferencesHandler) handleTheme(w http.ResponseWriter, r *http.Request) {
	var req themeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid payload")
		return
	}
	h.store(w, r, preferences.KeyTheme, req.Theme)
}

func (h *PreferencesHandler) store(w http.ResponseWriter, r *http.Request, key, value string) {
	if err := h.prefs.Set(r.Context(), key, value); err != nil {
		respondError(w, err, "failed to store preference")
		return
	}
	h.invalidate(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *PreferencesHandler) invalidate(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Invalidate(ctx); err != nil {
		logger.Log.WithError(err).Warn("failed to invalidate view cache")
	}
}
