package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Reading status values
type Status string

const (
	StatusNormal     Status = "Normal"
	StatusHigh       Status = "High"
	StatusLow        Status = "Low"
	StatusBorderline Status = "Borderline"
	StatusAbnormal   Status = "Abnormal"
	StatusUnknown    Status = "Unknown"
)

// ParseStatus matches free text against the known statuses, ignoring case.
// Anything else, including the empty string, is StatusUnknown.
func ParseStatus(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "normal":
		return StatusNormal
	case "high":
		return StatusHigh
	case "low":
		return StatusLow
	case "borderline":
		return StatusBorderline
	case "abnormal":
		return StatusAbnormal
	default:
		return StatusUnknown
	}
}

// Alert severity tiers
type Severity string

const (
	SeverityNormal     Severity = "normal"
	SeverityBorderline Severity = "borderline"
	SeverityHigh       Severity = "high"
)

// Trend directions
const (
	DirectionRising  = "rising"
	DirectionFalling = "falling"
	DirectionStable  = "stable"
)

// Alert types
const (
	AlertTypeBiomarker = "biomarker_alert"
	AlertTypeTrend     = "trend_alert"
)

type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Lab report input
type Reading struct {
	Value          *float64 `json:"value,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	RawStatus      string   `json:"status,omitempty"`
	ReferenceRange *Range   `json:"reference_range,omitempty"`
	Confidence     *float64 `json:"confidence,omitempty"`
	Source         string   `json:"source,omitempty"`
}

type readingAlias Reading

// UnmarshalJSON accepts the object form and the legacy bare-number form.
func (r *Reading) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		if bytes.Equal(trimmed, []byte("null")) {
			*r = Reading{}
			return nil
		}
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("reading value: %w", err)
		}
		*r = Reading{Value: &v}
		return nil
	}
	var alias readingAlias
	if err := json.Unmarshal(trimmed, &alias); err != nil {
		return err
	}
	*r = Reading(alias)
	return nil
}

func (r Reading) Status() Status {
	return ParseStatus(r.RawStatus)
}

// Numeric reports the value and whether one was recorded.
func (r Reading) Numeric() (float64, bool) {
	if r.Value == nil {
		return 0, false
	}
	return *r.Value, true
}

type Report struct {
	ReportDate Day                `json:"report_date"`
	SourceFile string             `json:"source_file,omitempty"`
	Biomarkers map[string]Reading `json:"biomarkers"`
}

type PatientProfile struct {
	PatientID string   `json:"patient_id"`
	Name      string   `json:"name"`
	Age       *int     `json:"age,omitempty"`
	Gender    string   `json:"gender,omitempty"`
	Reports   []Report `json:"reports"`
}

// Document is the dataset as delivered by a source. Either PatientProfile or
// Patients carries the patient data; the legacy fields describe the older
// single-patient export.
type Document struct {
	PatientProfile *PatientProfile             `json:"patient_profile,omitempty"`
	Patients       []PatientProfile            `json:"patients,omitempty"`
	SummaryStats   map[string]interface{}      `json:"summary_stats,omitempty"`
	Alerts         []Alert                     `json:"alerts,omitempty"`
	Trends         map[string]PrecomputedTrend `json:"trends,omitempty"`

	LegacyPatient string   `json:"patient,omitempty"`
	LegacyAge     *int     `json:"age,omitempty"`
	LegacyGender  string   `json:"gender,omitempty"`
	LegacyReports []Report `json:"reports,omitempty"`
}

// PrecomputedTrend is the trend shape emitted by the batch processor.
type PrecomputedTrend struct {
	Biomarker        string    `json:"biomarker"`
	Values           []float64 `json:"values"`
	Dates            []Day     `json:"dates"`
	TrendDirection   string    `json:"trend_direction,omitempty"`
	TrendStrength    *float64  `json:"trend_strength,omitempty"`
	ChangePercentage *float64  `json:"change_percentage,omitempty"`
}

// Derived structures
type NormalizedReport struct {
	ReportDate Day                `json:"report_date"`
	Biomarkers map[string]Reading `json:"biomarkers"`
}

type TrendPoint struct {
	Date  Day     `json:"date"`
	Value float64 `json:"value"`
}

type Trend struct {
	Biomarker         string       `json:"biomarker"`
	Points            []TrendPoint `json:"points"`
	Direction         string       `json:"direction"`
	Forecast          *float64     `json:"forecast,omitempty"`
	Latest            *Reading     `json:"latest,omitempty"`
	ChangePercentage  float64      `json:"change_percentage"`
	Strength          float64      `json:"strength"`
	PopulationAverage *float64     `json:"population_average,omitempty"`
}

type Alert struct {
	Type           string   `json:"type,omitempty"`
	Biomarker      string   `json:"biomarker"`
	Status         string   `json:"status,omitempty"`
	Value          string   `json:"value,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	Severity       Severity `json:"severity,omitempty"`
	Message        string   `json:"message,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Date           *Day     `json:"date,omitempty"`
}

type StatusTally struct {
	Normal     int `json:"normal"`
	Borderline int `json:"borderline"`
	Abnormal   int `json:"abnormal"`
}

// Critical value statuses
const (
	StatusCriticallyHigh = "Critically High"
	StatusCriticallyLow  = "Critically Low"
)

// CriticalValue is a High reading beyond 1.5x its range maximum or a Low
// reading under half its range minimum.
type CriticalValue struct {
	Biomarker    string   `json:"biomarker"`
	Value        float64  `json:"value"`
	Status       string   `json:"status"`
	ReferenceMax *float64 `json:"reference_max,omitempty"`
	ReferenceMin *float64 `json:"reference_min,omitempty"`
	Date         Day      `json:"date"`
}

type Summary struct {
	ReportCount            int             `json:"report_count"`
	UniqueBiomarkerCount   int             `json:"unique_biomarker_count"`
	MonitoringDurationDays *int            `json:"monitoring_duration_days"`
	CriticalAlertCount     int             `json:"critical_alert_count"`
	DataDensityDays        *int            `json:"data_density_days"`
	FirstReport            *Day            `json:"first_report"`
	LastReport             *Day            `json:"last_report"`
	StatusTally            StatusTally     `json:"status_tally"`
	CriticalValues         []CriticalValue `json:"critical_values,omitempty"`
}

// Presentation view-model
type PatientHeader struct {
	PatientID   string `json:"patient_id"`
	DisplayName string `json:"display_name"`
	Age         string `json:"age"`
	Gender      string `json:"gender"`
	Anonymized  bool   `json:"anonymized"`
}

type PatientOption struct {
	PatientID string `json:"patient_id"`
	Name      string `json:"name"`
	Selected  bool   `json:"selected"`
}

type TableCell struct {
	Present    bool   `json:"present"`
	Value      string `json:"value"`
	Unit       string `json:"unit,omitempty"`
	Status     string `json:"status,omitempty"`
	Reference  string `json:"reference,omitempty"`
	Confidence string `json:"confidence,omitempty"`
	Source     string `json:"source,omitempty"`
}

type TableRow struct {
	Date  Day         `json:"date"`
	Cells []TableCell `json:"cells"`
}

type Table struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

type ViewModel struct {
	RunID             string                 `json:"run_id"`
	Patient           PatientHeader          `json:"patient"`
	Patients          []PatientOption        `json:"patients,omitempty"`
	NormalizedReports []NormalizedReport     `json:"normalizedReports"`
	Trends            map[string]Trend       `json:"trends"`
	Alerts            []Alert                `json:"alerts"`
	Summary           Summary                `json:"summary"`
	Table             Table                  `json:"table"`
	Banner            string                 `json:"banner,omitempty"`
	Notes             string                 `json:"notes,omitempty"`
	SummaryStats      map[string]interface{} `json:"summary_stats,omitempty"`
}

// Event Bus models
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"` // lab_report, dashboard_refreshed, critical_alert
	Source    string                 `json:"source"`
	Data      map[string]interface{} `json:"data"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]string      `json:"metadata,omitempty"`
}
