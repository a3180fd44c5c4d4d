package summary

import (
	"math"
	"sort"

	"github.com/synaptica-ai/biomarkers/pkg/alerts"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/normalizer"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
)

const (
	criticalHighFactor = 1.5
	criticalLowFactor  = 0.5
)

// Aggregate derives the headline counts from chronologically sorted
// normalized reports and the final alert list. The catalog supplies reference
// ranges for readings that carry none.
func Aggregate(normalized []models.NormalizedReport, alertList []models.Alert, catalog ranges.Catalog) models.Summary {
	s := models.Summary{
		ReportCount:          len(normalized),
		UniqueBiomarkerCount: len(normalizer.BiomarkerNames(normalized)),
		CriticalAlertCount:   alerts.CriticalCount(alertList),
		StatusTally:          Tally(normalized),
		CriticalValues:       CriticalValues(normalized, catalog),
	}
	if len(normalized) == 0 {
		return s
	}

	first := normalized[0].ReportDate
	last := normalized[len(normalized)-1].ReportDate
	s.FirstReport = &first
	s.LastReport = &last

	if len(normalized) > 1 {
		duration := roundDays(last.DaysSince(first))
		s.MonitoringDurationDays = &duration
		s.DataDensityDays = DataDensity(normalized)
	}
	return s
}

// DataDensity is the mean gap in days between consecutive reports, rounded to
// a whole day. Nil with fewer than two reports.
func DataDensity(normalized []models.NormalizedReport) *int {
	if len(normalized) < 2 {
		return nil
	}
	var total float64
	for i := 1; i < len(normalized); i++ {
		total += normalized[i].ReportDate.DaysSince(normalized[i-1].ReportDate)
	}
	density := roundDays(total / float64(len(normalized)-1))
	return &density
}

// Tally counts readings by status group. Unknown statuses are not counted.
func Tally(normalized []models.NormalizedReport) models.StatusTally {
	var t models.StatusTally
	for _, report := range normalized {
		for _, reading := range report.Biomarkers {
			switch reading.Status() {
			case models.StatusNormal:
				t.Normal++
			case models.StatusBorderline:
				t.Borderline++
			case models.StatusHigh, models.StatusLow, models.StatusAbnormal:
				t.Abnormal++
			}
		}
	}
	return t
}

// CriticalValues lists readings far outside their reference range, in date
// then biomarker order. Only High and Low readings with a value and a known
// range are considered.
func CriticalValues(normalized []models.NormalizedReport, catalog ranges.Catalog) []models.CriticalValue {
	var out []models.CriticalValue
	for _, report := range normalized {
		names := make([]string, 0, len(report.Biomarkers))
		for name := range report.Biomarkers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			reading := report.Biomarkers[name]
			v, ok := reading.Numeric()
			if !ok {
				continue
			}
			ref, ok := referenceRange(name, reading, catalog)
			if !ok {
				continue
			}

			switch reading.Status() {
			case models.StatusHigh:
				if v > ref.Max*criticalHighFactor {
					bound := ref.Max
					out = append(out, models.CriticalValue{
						Biomarker:    name,
						Value:        v,
						Status:       models.StatusCriticallyHigh,
						ReferenceMax: &bound,
						Date:         report.ReportDate,
					})
				}
			case models.StatusLow:
				if v < ref.Min*criticalLowFactor {
					bound := ref.Min
					out = append(out, models.CriticalValue{
						Biomarker:    name,
						Value:        v,
						Status:       models.StatusCriticallyLow,
						ReferenceMin: &bound,
						Date:         report.ReportDate,
					})
				}
			}
		}
	}
	return out
}

func referenceRange(name string, r models.Reading, catalog ranges.Catalog) (models.Range, bool) {
	if r.ReferenceRange != nil {
		return *r.ReferenceRange, true
	}
	return catalog.Range(name)
}

func roundDays(days float64) int {
	return int(math.Floor(days + 0.5))
}
