package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/dataset"
)

const sampleDataset = `{
  "patients": [
    {"patient_id": "P001", "name": "Ada", "age": 36, "gender": "F", "reports": [
      {"report_date": "2024-01-01", "source_file": "jan.pdf", "biomarkers": {"HDL": {"value": 45, "unit": "mg/dL", "status": "Normal"}}},
      {"report_date": "2024-02-01", "source_file": "feb.pdf", "biomarkers": {"HDL": {"value": 50, "unit": "mg/dL", "status": "Normal"}}}
    ]},
    {"patient_id": "P002", "name": "Ben", "reports": [
      {"report_date": "2024-01-10", "biomarkers": {"LDL": {"value": 190, "unit": "mg/dL", "status": "High"}}}
    ]}
  ]
}`

func writeDataset(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dashboard_data.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestRunReportText(t *testing.T) {
	var out bytes.Buffer
	err := runReport(context.Background(), runOptions{input: writeDataset(t, sampleDataset), format: "text"}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "BIOMARKER ANALYSIS SUMMARY")
	assert.Contains(t, text, "Patient: Ada")
	assert.Contains(t, text, "Monitoring Period: 31 days")
	assert.Contains(t, text, "HDL: rising (+11.1%), next 55.00")
	assert.Contains(t, text, "ALERTS (0):")
}

func TestRunReportSelectsPatientAndExports(t *testing.T) {
	dir := t.TempDir()
	output := filepath.Join(dir, "dashboard.json")

	var out bytes.Buffer
	err := runReport(context.Background(), runOptions{
		input:     writeDataset(t, sampleDataset),
		output:    output,
		patientID: "P002",
		anonymize: true,
		format:    "text",
	}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Patient: Patient #66")
	assert.Contains(t, out.String(), "Critical Alert: LDL")

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	var vm models.ViewModel
	require.NoError(t, json.Unmarshal(raw, &vm))
	assert.Equal(t, "P002", vm.Patient.PatientID)
	assert.Equal(t, 1, vm.Summary.CriticalAlertCount)
}

func TestRunReportJSONIsStable(t *testing.T) {
	input := writeDataset(t, sampleDataset)
	var first, second bytes.Buffer
	require.NoError(t, runReport(context.Background(), runOptions{input: input, format: "json"}, &first))
	require.NoError(t, runReport(context.Background(), runOptions{input: input, format: "json"}, &second))
	assert.Equal(t, first.String(), second.String())
}

func TestRunReportErrors(t *testing.T) {
	err := runReport(context.Background(), runOptions{input: writeDataset(t, `{"patients": []}`), format: "text"}, &bytes.Buffer{})
	assert.True(t, dataset.IsMalformed(err))

	err = runReport(context.Background(), runOptions{input: writeDataset(t, sampleDataset), format: "yaml"}, &bytes.Buffer{})
	assert.Error(t, err)
}
