package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

const (
	EventDashboardRefreshed = "dashboard_refreshed"
	EventCriticalAlert      = "critical_alert"
	EventLabReport          = "lab_report"
)

// DashboardEvent summarizes a finished run for downstream consumers.
func DashboardEvent(vm *models.ViewModel, source string, at time.Time) models.Event {
	data := map[string]interface{}{
		"run_id":                 vm.RunID,
		"patient_id":             vm.Patient.PatientID,
		"report_count":           vm.Summary.ReportCount,
		"unique_biomarker_count": vm.Summary.UniqueBiomarkerCount,
		"critical_alert_count":   vm.Summary.CriticalAlertCount,
		"alert_count":            len(vm.Alerts),
	}
	if vm.Summary.LastReport != nil {
		data["last_report"] = vm.Summary.LastReport.String()
	}
	if vm.Summary.MonitoringDurationDays != nil {
		data["monitoring_duration_days"] = *vm.Summary.MonitoringDurationDays
	}

	return models.Event{
		ID:        uuid.New().String(),
		Type:      EventDashboardRefreshed,
		Source:    source,
		Data:      data,
		Timestamp: at,
		Metadata:  map[string]string{"run_id": vm.RunID},
	}
}

// CriticalAlertEvents emits one event per high-severity alert.
func CriticalAlertEvents(vm *models.ViewModel, source string, at time.Time) []models.Event {
	var events []models.Event
	for _, a := range vm.Alerts {
		if a.Severity != models.SeverityHigh {
			continue
		}
		data := map[string]interface{}{
			"patient_id":     vm.Patient.PatientID,
			"biomarker":      a.Biomarker,
			"status":         a.Status,
			"value":          a.Value,
			"unit":           a.Unit,
			"message":        a.Message,
			"recommendation": a.Recommendation,
		}
		if a.Date != nil {
			data["date"] = a.Date.String()
		}
		events = append(events, models.Event{
			ID:        uuid.New().String(),
			Type:      EventCriticalAlert,
			Source:    source,
			Data:      data,
			Timestamp: at,
			Metadata:  map[string]string{"run_id": vm.RunID},
		})
	}
	return events
}
