package normalizer

import (
	"sort"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

func sortedKeys(m map[string]models.Reading) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// BiomarkerNames returns the sorted union of biomarker keys across reports.
func BiomarkerNames(normalized []models.NormalizedReport) []string {
	set := make(map[string]struct{})
	for _, report := range normalized {
		for name := range report.Biomarkers {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
