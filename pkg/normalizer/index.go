package normalizer

import (
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
)

type indexKey struct {
	date      string
	biomarker string
}

// Index answers (date, biomarker) lookups over a chronological set of
// normalized reports without rescanning them.
type Index struct {
	dates      []models.Day
	biomarkers []string
	readings   map[indexKey]models.Reading
	present    map[string][]int
}

func NewIndex(normalized []models.NormalizedReport) *Index {
	idx := &Index{
		dates:    make([]models.Day, 0, len(normalized)),
		readings: make(map[indexKey]models.Reading),
		present:  make(map[string][]int),
	}
	for i, report := range normalized {
		idx.dates = append(idx.dates, report.ReportDate)
		for _, name := range sortedKeys(report.Biomarkers) {
			if _, seen := idx.present[name]; !seen {
				idx.biomarkers = append(idx.biomarkers, name)
			}
			idx.present[name] = append(idx.present[name], i)
			idx.readings[indexKey{report.ReportDate.String(), name}] = report.Biomarkers[name]
		}
	}
	return idx
}

func (idx *Index) Dates() []models.Day {
	return idx.dates
}

// Biomarkers lists biomarker names in order of first appearance; names first
// seen on the same date are alphabetical.
func (idx *Index) Biomarkers() []string {
	return idx.biomarkers
}

func (idx *Index) Lookup(date models.Day, biomarker string) (models.Reading, bool) {
	r, ok := idx.readings[indexKey{date.String(), biomarker}]
	return r, ok
}

// Series returns the dated readings for a biomarker, skipping dates where it
// is absent.
func (idx *Index) Series(biomarker string) ([]models.Day, []models.Reading) {
	positions := idx.present[biomarker]
	dates := make([]models.Day, 0, len(positions))
	readings := make([]models.Reading, 0, len(positions))
	for _, pos := range positions {
		d := idx.dates[pos]
		dates = append(dates, d)
		readings = append(readings, idx.readings[indexKey{d.String(), biomarker}])
	}
	return dates, readings
}

func (idx *Index) Latest(biomarker string) (models.Reading, bool) {
	positions := idx.present[biomarker]
	if len(positions) == 0 {
		return models.Reading{}, false
	}
	d := idx.dates[positions[len(positions)-1]]
	return idx.Lookup(d, biomarker)
}
