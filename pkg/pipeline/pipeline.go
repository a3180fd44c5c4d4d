package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/synaptica-ai/biomarkers/pkg/alerts"
	"github.com/synaptica-ai/biomarkers/pkg/common/logger"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
	"github.com/synaptica-ai/biomarkers/pkg/normalizer"
	"github.com/synaptica-ai/biomarkers/pkg/observability/metrics"
	"github.com/synaptica-ai/biomarkers/pkg/patient"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
	"github.com/synaptica-ai/biomarkers/pkg/summary"
	"github.com/synaptica-ai/biomarkers/pkg/trends"
)

// runNamespace scopes run ids derived from dashboard inputs.
var runNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:biomarkers:dashboard-run"))

type Options struct {
	TrendAlerts    bool
	TrendThreshold float64
}

// Pipeline turns a dataset document into the dashboard view-model.
type Pipeline struct {
	source     dataset.Source
	prefs      preferences.Store
	analyzer   *trends.Analyzer
	classifier *alerts.Classifier
	catalog    ranges.Catalog
	opts       Options
}

func New(source dataset.Source, prefs preferences.Store, catalog ranges.Catalog, opts Options) *Pipeline {
	return &Pipeline{
		source:     source,
		prefs:      prefs,
		analyzer:   trends.NewAnalyzer(catalog),
		classifier: alerts.NewClassifier(catalog),
		catalog:    catalog,
		opts:       opts,
	}
}

// Run loads the dataset, reads preferences once and builds the view-model.
func (p *Pipeline) Run(ctx context.Context) (*models.ViewModel, error) {
	start := time.Now()

	doc, err := p.source.Load(ctx)
	if err != nil {
		metrics.ObserveFailure(dataset.IsMalformed(err))
		logger.Log.WithError(err).Error("failed to load dataset")
		return nil, err
	}

	snap := preferences.Read(ctx, p.prefs)
	vm, err := p.Build(doc, snap)
	if err != nil {
		metrics.ObserveFailure(dataset.IsMalformed(err))
		logger.Log.WithError(err).Error("failed to build dashboard")
		return nil, err
	}

	metrics.ObserveRun(time.Since(start), vm.Summary.ReportCount, vm.Summary.CriticalAlertCount)
	logger.Log.WithFields(logrus.Fields{
		"run_id":          vm.RunID,
		"patient_id":      vm.Patient.PatientID,
		"reports":         vm.Summary.ReportCount,
		"biomarkers":      vm.Summary.UniqueBiomarkerCount,
		"alerts":          len(vm.Alerts),
		"critical_alerts": vm.Summary.CriticalAlertCount,
	}).Info("dashboard pipeline completed")
	return vm, nil
}

// Build is the pure part of a run: the same document and preferences always
// produce the same view-model.
func (p *Pipeline) Build(doc *models.Document, snap preferences.Snapshot) (*models.ViewModel, error) {
	profile, err := patient.Resolve(doc, snap.SelectedPatientID)
	if err != nil {
		if errors.Is(err, patient.ErrNoPatient) {
			return nil, dataset.Malformed(err)
		}
		return nil, err
	}
	for i, r := range profile.Reports {
		if r.ReportDate.IsZero() {
			return nil, dataset.Malformed(fmt.Errorf("report %d of patient %q has no report date", i, profile.PatientID))
		}
	}

	runID, err := deriveRunID(doc, snap)
	if err != nil {
		return nil, err
	}

	normalized := normalizer.Merge(profile.Reports)
	idx := normalizer.NewIndex(normalized)
	single := len(doc.Patients) == 0

	var trendMap map[string]models.Trend
	if single && len(doc.Trends) > 0 {
		trendMap = p.analyzer.FromPrecomputed(doc.Trends, idx)
	} else {
		trendMap = p.analyzer.AnalyzeIndex(idx)
	}

	var alertList []models.Alert
	if single && len(doc.Alerts) > 0 {
		alertList = p.classifier.Validate(doc.Alerts)
	} else {
		alertList = p.classifier.Derive(normalized, trendMap)
	}
	if p.opts.TrendAlerts {
		alertList = append(alertList, p.classifier.TrendAlerts(trendMap, p.opts.TrendThreshold)...)
	}
	if alertList == nil {
		alertList = []models.Alert{}
	}

	return &models.ViewModel{
		RunID:             runID,
		Patient:           Header(profile, snap.Anonymize),
		Patients:          patient.Options(doc, profile),
		NormalizedReports: normalized,
		Trends:            trendMap,
		Alerts:            alertList,
		Summary:           summary.Aggregate(normalized, alertList, p.catalog),
		Table:             Project(normalized, idx, snap.CustomRanges, p.catalog),
		Banner:            alerts.Banner(alertList),
		Notes:             snap.ClinicianNotes,
		SummaryStats:      doc.SummaryStats,
	}, nil
}

// deriveRunID derives a stable id from everything a run reads.
func deriveRunID(doc *models.Document, snap preferences.Snapshot) (string, error) {
	payload, err := json.Marshal(struct {
		Document *models.Document     `json:"document"`
		Prefs    preferences.Snapshot `json:"prefs"`
	}{doc, snap})
	if err != nil {
		return "", fmt.Errorf("encoding run input: %w", err)
	}
	return uuid.NewSHA1(runNamespace, payload).String(), nil
}
