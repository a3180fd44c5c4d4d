package routes

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
)

// Runner produces a fresh view-model.
type Runner interface {
	Run(ctx context.Context) (*models.ViewModel, error)
}

// ViewCache holds computed view-models keyed by selected patient id.
type ViewCache interface {
	Get(ctx context.Context, patientID string) (*models.ViewModel, bool, error)
	Set(ctx context.Context, patientID string, vm *models.ViewModel) error
	Invalidate(ctx context.Context) error
}

type DashboardHandler struct {
	runner Runner
	prefs  preferences.Store
	cache  ViewCache
}

// NewDashboardHandler wires the read side. cache may be nil.
func NewDashboardHandler(runner Runner, prefs preferences.Store, cache ViewCache) *DashboardHandler {
	return &DashboardHandler{runner: runner, prefs: prefs, cache: cache}
}

func (h *DashboardHandler) Register(r *mux.Router) {
	r.HandleFunc("/dashboard", h.handleDashboard).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/summary", h.section(func(vm *models.ViewModel) interface{} { return vm.Summary })).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/trends", h.section(func(vm *models.ViewModel) interface{} { return vm.Trends })).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/alerts", h.handleAlerts).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/reports", h.section(func(vm *models.ViewModel) interface{} { return vm.NormalizedReports })).Methods(http.MethodGet)
	r.HandleFunc("/dashboard/table", h.section(func(vm *models.ViewModel) interface{} { return vm.Table })).Methods(http.MethodGet)
	r.HandleFunc("/patients", h.handlePatients).Methods(http.MethodGet)
}

// View returns the cached view-model for the current selection, running the
// pipeline on a miss.
func (h *DashboardHandler) View(ctx context.Context) (*models.ViewModel, error) {
	key := ""
	if h.prefs != nil {
		if v, ok, err := h.prefs.Get(ctx, preferences.KeySelectedPatient); err == nil && ok {
			key = v
		}
	}

	if h.cache != nil {
		vm, ok, err := h.cache.Get(ctx, key)
		if err != nil {
			logger.Log.WithError(err).Warn("view cache read failed")
		} else if ok {
			return vm, nil
		}
	}

	vm, err := h.runner.Run(ctx)
	if err != nil {
		return nil, err
	}
	if h.cache != nil {
		if err := h.cache.Set(ctx, key, vm); err != nil {
			logger.Log.WithError(err).Warn("view cache write failed")
		}
	}
	return vm, nil
}

func (h *DashboardHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	vm, err := h.View(r.Context())
	if err != nil {
		respondError(w, err, "failed to build dashboard")
		return
	}
	writeJSON(w, vm)
}

func (h *DashboardHandler) section(pick func(*models.ViewModel) interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vm, err := h.View(r.Context())
		if err != nil {
			respondError(w, err, "failed to build dashboard")
			return
		}
		writeJSON(w, pick(vm))
	}
}

type AlertsResponse struct {
	Banner        string         `json:"banner,omitempty"`
	CriticalCount int            `json:"critical_count"`
	Items         []models.Alert `json:"items"`
}

// handleAlerts supports ?severity= to narrow the list.
func (h *DashboardHandler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	vm, err := h.View(r.Context())
	if err != nil {
		respondError(w, err, "failed to build dashboard")
		return
	}

	items := vm.Alerts
	if sev := r.URL.Query().Get("severity"); sev != "" {
		items = make([]models.Alert, 0, len(vm.Alerts))
		for _, a := range vm.Alerts {
			if string(a.Severity) == sev {
				items = append(items, a)
			}
		}
	}

	writeJSON(w, AlertsResponse{
		Banner:        vm.Banner,
		CriticalCount: vm.Summary.CriticalAlertCount,
		Items:         items,
	})
}

func (h *DashboardHandler) handlePatients(w http.ResponseWriter, r *http.Request) {
	vm, err := h.View(r.Context())
	if err != nil {
		respondError(w, err, "failed to build dashboard")
		return
	}
	options := vm.Patients
	if len(options) == 0 {
		options = []models.PatientOption{{
			PatientID: vm.Patient.PatientID,
			Name:      vm.Patient.DisplayName,
			Selected:  true,
		}}
	}
	writeJSON(w, options)
}
