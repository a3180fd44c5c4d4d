package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

var (
	pipelineRuns          atomic.Int64
	pipelineFailed        atomic.Int64
	pipelineMalformed     atomic.Int64
	pipelineLastDuration  atomic.Int64
	criticalAlertsLatest  atomic.Int64
	reportsLatest         atomic.Int64
	datasetUploads        atomic.Int64
	snapshotsPersisted    atomic.Int64
	refreshEventsConsumed atomic.Int64
)

// ObserveRun records the outcome of one pipeline run.
func ObserveRun(duration time.Duration, reports, critical int) {
	pipelineRuns.Add(1)
	pipelineLastDuration.Store(duration.Milliseconds())
	reportsLatest.Store(int64(reports))
	criticalAlertsLatest.Store(int64(critical))
}

func ObserveFailure(malformed bool) {
	pipelineFailed.Add(1)
	if malformed {
		pipelineMalformed.Add(1)
	}
}

func ObserveUpload() { datasetUploads.Add(1) }

func ObserveSnapshot() { snapshotsPersisted.Add(1) }

func ObserveRefreshEvent() { refreshEventsConsumed.Add(1) }

// Counters exposes the current values, keyed by metric name.
func Counters() map[string]int64 {
	return map[string]int64{
		"biomarkers_pipeline_runs_total":           pipelineRuns.Load(),
		"biomarkers_pipeline_failed_total":         pipelineFailed.Load(),
		"biomarkers_pipeline_malformed_total":      pipelineMalformed.Load(),
		"biomarkers_pipeline_last_duration_ms":     pipelineLastDuration.Load(),
		"biomarkers_dashboard_critical_alerts":     criticalAlertsLatest.Load(),
		"biomarkers_dashboard_reports":             reportsLatest.Load(),
		"biomarkers_dataset_uploads_total":         datasetUploads.Load(),
		"biomarkers_snapshots_persisted_total":     snapshotsPersisted.Load(),
		"biomarkers_refresh_events_consumed_total": refreshEventsConsumed.Load(),
	}
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	writeMetrics(w)
}

func writeMetrics(w io.Writer) {
	writeMetric(w, "biomarkers_pipeline_runs_total", "counter", "Number of successful dashboard pipeline runs.", pipelineRuns.Load())
	writeMetric(w, "biomarkers_pipeline_failed_total", "counter", "Number of dashboard pipeline runs that failed.", pipelineFailed.Load())
	writeMetric(w, "biomarkers_pipeline_malformed_total", "counter", "Number of pipeline runs rejected for malformed datasets.", pipelineMalformed.Load())
	writeMetric(w, "biomarkers_pipeline_last_duration_ms", "gauge", "Duration of the latest pipeline run in milliseconds.", pipelineLastDuration.Load())
	writeMetric(w, "biomarkers_dashboard_critical_alerts", "gauge", "Critical alerts in the latest dashboard.", criticalAlertsLatest.Load())
	writeMetric(w, "biomarkers_dashboard_reports", "gauge", "Normalized reports in the latest dashboard.", reportsLatest.Load())
	writeMetric(w, "biomarkers_dataset_uploads_total", "counter", "Number of dataset uploads accepted.", datasetUploads.Load())
	writeMetric(w, "biomarkers_snapshots_persisted_total", "counter", "Number of dashboard snapshots persisted.", snapshotsPersisted.Load())
	writeMetric(w, "biomarkers_refresh_events_consumed_total", "counter", "Number of lab report events consumed by the refresh worker.", refreshEventsConsumed.Load())
}

func writeMetric(w io.Writer, name, kind, help string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, kind)
	fmt.Fprintf(w, "%s %d\n", name, value)
}
