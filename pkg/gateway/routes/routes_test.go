package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
	"github.com/synaptica-ai/biomarkers/pkg/pipeline"
	"github.com/synaptica-ai/biomarkers/pkg/preferences"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
	"github.com/synaptica-ai/biomarkers/pkg/storage"
)

const fallbackDoc = `{
  "patients": [
    {"patient_id": "A", "name": "Alice", "reports": [
      {"report_date": "2024-01-01", "biomarkers": {"LDL": {"value": 160, "unit": "mg/dL", "status": "High"}}},
      {"report_date": "2024-02-01", "biomarkers": {"LDL": {"value": 170, "unit": "mg/dL", "status": "High"}}}
    ]},
    {"patient_id": "B", "name": "Bob", "reports": [
      {"report_date": "2024-01-05", "biomarkers": {"HDL": {"value": 45, "unit": "mg/dL", "status": "Normal"}}}
    ]}
  ]
}`

type memoryCache struct {
	mu    sync.Mutex
	views map[string]*models.ViewModel
}

func newMemoryCache() *memoryCache {
	return &memoryCache{views: map[string]*models.ViewModel{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (*models.ViewModel, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	vm, ok := c.views[key]
	return vm, ok, nil
}

func (c *memoryCache) Set(_ context.Context, key string, vm *models.ViewModel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views[key] = vm
	return nil
}

func (c *memoryCache) Invalidate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.views = map[string]*models.ViewModel{}
	return nil
}

type countingRunner struct {
	inner Runner
	calls int
}

func (c *countingRunner) Run(ctx context.Context) (*models.ViewModel, error) {
	c.calls++
	return c.inner.Run(ctx)
}

type memorySnapshots struct {
	saved []*models.ViewModel
}

func (m *memorySnapshots) Save(_ context.Context, vm *models.ViewModel) (*storage.SnapshotModel, error) {
	m.saved = append(m.saved, vm)
	return storage.NewSnapshotModel(vm)
}

func (m *memorySnapshots) Latest(_ context.Context, patientID string) (*models.ViewModel, error) {
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].Patient.PatientID == patientID {
			return m.saved[i], nil
		}
	}
	return nil, storage.ErrSnapshotNotFound
}

func (m *memorySnapshots) History(_ context.Context, patientID string, _ int) ([]storage.SnapshotSummary, error) {
	out := []storage.SnapshotSummary{}
	for _, vm := range m.saved {
		if patientID == "" || vm.Patient.PatientID == patientID {
			rec, err := storage.NewSnapshotModel(vm)
			if err != nil {
				return nil, err
			}
			out = append(out, rec.Summary())
		}
	}
	return out, nil
}

type fixture struct {
	router    *mux.Router
	prefs     *preferences.MemoryStore
	runner    *countingRunner
	snapshots *memorySnapshots
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := dataset.Decode([]byte(fallbackDoc))
	require.NoError(t, err)

	prefs := preferences.NewMemoryStore()
	source := dataset.NewOverrideSource(prefs, dataset.NewStaticSource(doc))
	runner := &countingRunner{inner: pipeline.New(source, prefs, ranges.DefaultCatalog(), pipeline.Options{})}
	cache := newMemoryCache()
	snapshots := &memorySnapshots{}

	router := mux.NewRouter()
	NewDashboardHandler(runner, prefs, cache).Register(router)
	NewPreferencesHandler(prefs, cache).Register(router)
	NewDatasetHandler(runner, prefs, cache, nil, snapshots).Register(router)
	NewSnapshotsHandler(snapshots).Register(router)
	NewMetricsHandler(nil).Register(router)

	return &fixture{router: router, prefs: prefs, runner: runner, snapshots: snapshots}
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestDashboardIsCached(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/dashboard", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var vm models.ViewModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vm))
	assert.Equal(t, "A", vm.Patient.PatientID)
	assert.Equal(t, 2, vm.Summary.CriticalAlertCount)

	rec = f.do(http.MethodGet, "/dashboard/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.runner.calls)
}

func TestSelectPatientInvalidatesView(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/dashboard", "").Code)

	rec := f.do(http.MethodPut, "/preferences/patient", `{"patient_id": "B"}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/patients", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var options []models.PatientOption
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &options))
	require.Len(t, options, 2)
	assert.True(t, options[1].Selected)
	assert.Equal(t, 2, f.runner.calls)
}

func TestAlertsFilter(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/dashboard/alerts?severity=high", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp AlertsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Items, 2)
	assert.Equal(t, 2, resp.CriticalCount)
	assert.True(t, strings.HasPrefix(resp.Banner, "Critical Alert: LDL"))

	rec = f.do(http.MethodGet, "/dashboard/alerts?severity=borderline", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Items)
}

func TestCustomRangeShowsInTable(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPut, "/preferences/ranges/LDL", `{"min": 0, "max": 130}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/dashboard/table", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var table models.Table
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &table))
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "0 - 130 mg/dL", table.Rows[0].Cells[0].Reference)
	assert.Equal(t, "High", table.Rows[0].Cells[0].Status)

	rec = f.do(http.MethodPut, "/preferences/ranges/LDL", `{"min": 200, "max": 130}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(http.MethodPut, "/preferences/ranges/LDL", `{"min": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPreferencesRoundTrip(t *testing.T) {
	f := newFixture(t)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodPut, "/preferences/notes", `{"notes": "repeat lipid panel"}`).Code)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPut, "/preferences/privacy", `{"anonymize": true}`).Code)
	require.Equal(t, http.StatusNoContent, f.do(http.MethodPut, "/preferences/theme", `{"theme": "dark"}`).Code)

	rec := f.do(http.MethodGet, "/preferences", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var prefs PreferencesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prefs))
	assert.Equal(t, "repeat lipid panel", prefs.ClinicianNotes)
	assert.True(t, prefs.Anonymize)
	assert.Equal(t, "dark", prefs.Theme)

	rec = f.do(http.MethodGet, "/dashboard", "")
	var vm models.ViewModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vm))
	assert.Equal(t, "Patient #65", vm.Patient.DisplayName)
	assert.Equal(t, "repeat lipid panel", vm.Notes)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPut, "/preferences/notes", `{`).Code)
}

func TestUploadOverridesDataset(t *testing.T) {
	f := newFixture(t)

	upload := `{"patient_profile": {"patient_id": "Z", "name": "Zed", "reports": [
		{"report_date": "2024-03-01", "biomarkers": {"HDL": 50}}
	]}}`
	rec := f.do(http.MethodPost, "/dataset", upload)
	require.Equal(t, http.StatusCreated, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Z"}, resp.Patients)
	assert.Equal(t, 1, resp.Reports)

	rec = f.do(http.MethodGet, "/dashboard", "")
	var vm models.ViewModel
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vm))
	assert.Equal(t, "Z", vm.Patient.PatientID)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/dataset", "").Code)
	rec = f.do(http.MethodGet, "/dashboard", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &vm))
	assert.Equal(t, "A", vm.Patient.PatientID)
}

func TestUploadRejectsMalformedDataset(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/dataset", `{"patients": []}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "malformed dataset")

	rec = f.do(http.MethodPost, "/dataset", `not json`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestRefreshPersistsSnapshot(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/dataset/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, f.snapshots.saved, 1)

	rec = f.do(http.MethodGet, "/snapshots?patient_id=A", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var items []storage.SnapshotSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].CriticalAlertCount)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/snapshots/latest?patient_id=A", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodGet, "/snapshots/latest?patient_id=B", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/snapshots/latest", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/snapshots?limit=x", "").Code)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")

	rec = f.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "biomarkers_pipeline_runs_total")
}

func TestHealthReportsFailingDependency(t *testing.T) {
	router := mux.NewRouter()
	NewMetricsHandler(map[string]HealthCheck{
		"redis": func(context.Context) error { return assert.AnError },
	}).Register(router)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "degraded")
}
