package normalizer

import (
	"sort"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

// Merge collapses reports sharing a calendar date into one NormalizedReport.
// Within a date, readings are applied in input order so a later report
// overrides an earlier one per biomarker while keys it lacks survive. Output
// is sorted by date ascending. Inputs are never modified.
func Merge(reports []models.Report) []models.NormalizedReport {
	if len(reports) == 0 {
		return []models.NormalizedReport{}
	}

	byDate := make(map[string]*models.NormalizedReport, len(reports))
	order := make([]string, 0, len(reports))

	for _, report := range reports {
		key := report.ReportDate.String()
		merged, ok := byDate[key]
		if !ok {
			merged = &models.NormalizedReport{
				ReportDate: report.ReportDate,
				Biomarkers: make(map[string]models.Reading, len(report.Biomarkers)),
			}
			byDate[key] = merged
			order = append(order, key)
		}
		for name, reading := range report.Biomarkers {
			if reading.Source == "" {
				reading.Source = report.SourceFile
			}
			merged.Biomarkers[name] = reading
		}
	}

	out := make([]models.NormalizedReport, 0, len(order))
	for _, key := range order {
		out = append(out, *byDate[key])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ReportDate.Before(out[j].ReportDate.Time)
	})
	return out
}
