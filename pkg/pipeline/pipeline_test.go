package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
)

func val(v float64) *float64 { return &v }

func reading(v float64, unit, status string) models.Reading {
	return models.Reading{Value: val(v), Unit: unit, RawStatus: status}
}

func report(day int, month time.Month, biomarkers map[string]models.Reading) models.Report {
	return models.Report{ReportDate: models.NewDay(2024, month, day), Biomarkers: biomarkers}
}

func hdlDocument() *models.Document {
	age := 36
	return &models.Document{
		PatientProfile: &models.PatientProfile{
			PatientID: "P1",
			Name:      "Ada Lovelace",
			Age:       &age,
			Gender:    "F",
			Reports: []models.Report{
				report(1, time.January, map[string]models.Reading{"HDL": reading(45, "mg/dL", "Normal")}),
				report(1, time.February, map[string]models.Reading{"HDL": reading(50, "mg/dL", "Normal")}),
			},
		},
	}
}

func newPipeline(opts Options) *Pipeline {
	return New(nil, nil, ranges.DefaultCatalog(), opts)
}

func TestBuildEndToEnd(t *testing.T) {
	vm, err := newPipeline(Options{}).Build(hdlDocument(), preferences.Snapshot{})
	require.NoError(t, err)

	require.Len(t, vm.NormalizedReports, 2)
	hdl, ok := vm.Trends["HDL"]
	require.True(t, ok)
	assert.Equal(t, models.DirectionRising, hdl.Direction)
	require.NotNil(t, hdl.Forecast)
	assert.Equal(t, 55.0, *hdl.Forecast)
	require.Len(t, hdl.Points, 2)
	require.NotNil(t, hdl.Latest)
	assert.Equal(t, 50.0, *hdl.Latest.Value)

	assert.Empty(t, vm.Alerts)
	assert.NotNil(t, vm.Alerts)
	assert.Equal(t, "", vm.Banner)

	assert.Equal(t, 2, vm.Summary.ReportCount)
	assert.Equal(t, 1, vm.Summary.UniqueBiomarkerCount)
	require.NotNil(t, vm.Summary.MonitoringDurationDays)
	assert.Equal(t, 31, *vm.Summary.MonitoringDurationDays)
	assert.Equal(t, 0, vm.Summary.CriticalAlertCount)

	assert.Equal(t, "Ada Lovelace", vm.Patient.DisplayName)
	assert.Equal(t, "36", vm.Patient.Age)
	assert.Nil(t, vm.Patients)
	assert.NotEmpty(t, vm.RunID)
}

func TestBuildIsDeterministic(t *testing.T) {
	p := newPipeline(Options{TrendAlerts: true, TrendThreshold: 20})
	snap := preferences.Snapshot{ClinicianNotes: "recheck in March"}

	first, err := p.Build(hdlDocument(), snap)
	require.NoError(t, err)
	second, err := p.Build(hdlDocument(), snap)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	other, err := p.Build(hdlDocument(), preferences.Snapshot{ClinicianNotes: "changed"})
	require.NoError(t, err)
	assert.NotEqual(t, first.RunID, other.RunID)
}

func TestBuildDerivesCriticalAlerts(t *testing.T) {
	doc := &models.Document{
		PatientProfile: &models.PatientProfile{
			PatientID: "P2",
			Name:      "Grace",
			Reports: []models.Report{
				report(1, time.January, map[string]models.Reading{
					"LDL":     reading(160, "mg/dL", "High"),
					"Glucose": reading(90, "mg/dL", "Normal"),
				}),
				report(1, time.February, map[string]models.Reading{
					"LDL": reading(170, "mg/dL", "High"),
				}),
			},
		},
	}

	vm, err := newPipeline(Options{}).Build(doc, preferences.Snapshot{})
	require.NoError(t, err)

	require.Len(t, vm.Alerts, 2)
	assert.Equal(t, "LDL is high. Current value: 160 mg/dL", vm.Alerts[0].Message)
	assert.Equal(t, "LDL is high (trending upward). Current value: 170 mg/dL", vm.Alerts[1].Message)
	assert.Equal(t, 2, vm.Summary.CriticalAlertCount)
	require.Len(t, vm.Summary.CriticalValues, 2)
	assert.Equal(t, models.StatusCriticallyHigh, vm.Summary.CriticalValues[0].Status)
	assert.Equal(t, 160.0, vm.Summary.CriticalValues[0].Value)
	require.NotNil(t, vm.Summary.CriticalValues[0].ReferenceMax)
	assert.Equal(t, 100.0, *vm.Summary.CriticalValues[0].ReferenceMax)
	assert.Equal(t,
		"Critical Alert: LDL - LDL is high. Current value: 160 mg/dL | LDL - LDL is high (trending upward). Current value: 170 mg/dL",
		vm.Banner)
}

func TestBuildPassesAlertFeedThrough(t *testing.T) {
	doc := hdlDocument()
	doc.Alerts = []models.Alert{
		{Biomarker: "HDL", Status: "Low", Message: "HDL below target"},
		{Biomarker: "", Status: "High"},
		{Biomarker: "Vitamin D", Severity: "medium", Message: "Vitamin D is borderline"},
	}
	doc.SummaryStats = map[string]interface{}{"total_reports": 2.0}

	vm, err := newPipeline(Options{}).Build(doc, preferences.Snapshot{})
	require.NoError(t, err)

	require.Len(t, vm.Alerts, 2)
	assert.Equal(t, models.SeverityHigh, vm.Alerts[0].Severity)
	assert.Equal(t, models.SeverityBorderline, vm.Alerts[1].Severity)
	assert.Equal(t, 1, vm.Summary.CriticalAlertCount)
	assert.Equal(t, 2.0, vm.SummaryStats["total_reports"])
}

func TestBuildSelectsPatient(t *testing.T) {
	doc := &models.Document{
		Patients: []models.PatientProfile{
			{PatientID: "A", Name: "Alice", Reports: []models.Report{report(1, time.January, map[string]models.Reading{"HDL": reading(40, "", "Normal")})}},
			{PatientID: "B", Name: "Bob", Reports: []models.Report{report(2, time.January, map[string]models.Reading{"LDL": reading(99, "", "Normal")})}},
		},
	}
	p := newPipeline(Options{})

	vm, err := p.Build(doc, preferences.Snapshot{SelectedPatientID: "B"})
	require.NoError(t, err)
	assert.Equal(t, "B", vm.Patient.PatientID)
	require.Len(t, vm.Patients, 2)
	assert.False(t, vm.Patients[0].Selected)
	assert.True(t, vm.Patients[1].Selected)
	assert.Contains(t, vm.Trends, "LDL")

	vm, err = p.Build(doc, preferences.Snapshot{SelectedPatientID: "missing"})
	require.NoError(t, err)
	assert.Equal(t, "A", vm.Patient.PatientID)
}

func TestBuildIgnoresDocumentBlocksForMultiPatientDocuments(t *testing.T) {
	doc := &models.Document{
		Patients: []models.PatientProfile{
			{PatientID: "A", Name: "Alice", Reports: []models.Report{report(1, time.January, map[string]models.Reading{"HDL": reading(40, "", "Normal")})}},
			{PatientID: "B", Name: "Bob"},
		},
		Alerts: []models.Alert{{Biomarker: "LDL", Status: "High"}},
	}
	vm, err := newPipeline(Options{}).Build(doc, preferences.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, vm.Alerts)
}

func TestBuildUsesPrecomputedTrends(t *testing.T) {
	doc := hdlDocument()
	doc.Trends = map[string]models.PrecomputedTrend{
		"HDL": {
			Biomarker:      "HDL",
			Values:         []float64{45, 50},
			Dates:          []models.Day{models.NewDay(2024, time.January, 1), models.NewDay(2024, time.February, 1)},
			TrendDirection: "stable",
		},
	}
	vm, err := newPipeline(Options{}).Build(doc, preferences.Snapshot{})
	require.NoError(t, err)
	assert.Equal(t, models.DirectionStable, vm.Trends["HDL"].Direction)
	require.NotNil(t, vm.Trends["HDL"].Forecast)
	assert.Equal(t, 55.0, *vm.Trends["HDL"].Forecast)
}

func TestBuildTrendAlerts(t *testing.T) {
	doc := hdlDocument()
	doc.PatientProfile.Reports[1].Biomarkers["HDL"] = reading(60, "mg/dL", "Normal")

	vm, err := newPipeline(Options{}).Build(doc, preferences.Snapshot{})
	require.NoError(t, err)
	assert.Empty(t, vm.Alerts)

	vm, err = newPipeline(Options{TrendAlerts: true, TrendThreshold: 20}).Build(doc, preferences.Snapshot{})
	require.NoError(t, err)
	require.Len(t, vm.Alerts, 1)
	assert.Equal(t, models.AlertTypeTrend, vm.Alerts[0].Type)
	assert.Equal(t, "HDL has increased by 33.3% over the monitoring period", vm.Alerts[0].Message)
	assert.Equal(t, 0, vm.Summary.CriticalAlertCount)
}

func TestBuildMalformed(t *testing.T) {
	p := newPipeline(Options{})

	_, err := p.Build(&models.Document{}, preferences.Snapshot{})
	require.Error(t, err)
	assert.True(t, dataset.IsMalformed(err))

	doc := hdlDocument()
	doc.PatientProfile.Reports = append(doc.PatientProfile.Reports, models.Report{})
	_, err = p.Build(doc, preferences.Snapshot{})
	assert.True(t, dataset.IsMalformed(err))
}

func TestBuildEmptyPatient(t *testing.T) {
	doc := &models.Document{PatientProfile: &models.PatientProfile{PatientID: "P0"}}
	vm, err := newPipeline(Options{}).Build(doc, preferences.Snapshot{})
	require.NoError(t, err)

	assert.NotNil(t, vm.NormalizedReports)
	assert.Empty(t, vm.Trends)
	assert.Equal(t, 0, vm.Summary.ReportCount)
	assert.Nil(t, vm.Summary.MonitoringDurationDays)
	assert.Nil(t, vm.Summary.DataDensityDays)
	assert.Equal(t, "-", vm.Patient.DisplayName)
	assert.Equal(t, "-", vm.Patient.Age)
}

type failingSource struct{ err error }

func (f failingSource) Load(context.Context) (*models.Document, error) { return nil, f.err }

func TestRun(t *testing.T) {
	ctx := context.Background()
	prefs := preferences.NewMemoryStore()
	require.NoError(t, prefs.Set(ctx, preferences.KeyAnonymize, "true"))
	require.NoError(t, prefs.Set(ctx, preferences.KeyClinicianNotes, "fasting sample"))

	p := New(dataset.NewStaticSource(hdlDocument()), prefs, ranges.DefaultCatalog(), Options{})
	vm, err := p.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Patient #65", vm.Patient.DisplayName)
	assert.True(t, vm.Patient.Anonymized)
	assert.Equal(t, "fasting sample", vm.Notes)
}

func TestRunPropagatesSourceErrors(t *testing.T) {
	boom := errors.New("boom")
	p := New(failingSource{err: boom}, nil, ranges.DefaultCatalog(), Options{})
	_, err := p.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}
