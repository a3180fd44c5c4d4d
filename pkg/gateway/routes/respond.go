package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	respondJSON(w, http.StatusOK, data)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Log.WithError(err).Error("failed to write json response")
	}
}

// respondError maps pipeline failures onto HTTP statuses. A malformed dataset
// is the caller's problem and is reported verbatim.
func respondError(w http.ResponseWriter, err error, msg string) {
	var tooLarge *http.MaxBytesError
	switch {
	case dataset.IsMalformed(err):
		respondJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.As(err, &tooLarge):
		respondJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
	default:
		logger.Log.WithError(err).Error(msg)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: msg})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
