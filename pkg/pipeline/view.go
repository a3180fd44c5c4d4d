package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/normalizer"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
)

const placeholder = "-"

// Header builds the clinical header for the active patient. With anonymize
// set the name is replaced by a code derived from its first character.
func Header(profile *models.PatientProfile, anonymize bool) models.PatientHeader {
	h := models.PatientHeader{
		PatientID:   profile.PatientID,
		DisplayName: orPlaceholder(profile.Name),
		Age:         placeholder,
		Gender:      orPlaceholder(profile.Gender),
		Anonymized:  anonymize,
	}
	if profile.Age != nil && *profile.Age != 0 {
		h.Age = strconv.Itoa(*profile.Age)
	}
	if anonymize {
		h.DisplayName = AnonymizeName(profile.Name)
	}
	return h
}

// AnonymizeName returns "Patient #<n>" where n is the first UTF-16 code unit
// of name, or "-" for an empty name.
func AnonymizeName(name string) string {
	if name == "" {
		return placeholder
	}
	units := utf16.Encode([]rune(name))
	return "Patient #" + strconv.Itoa(int(units[0]))
}

// Project lays the normalized readings out as a date by biomarker grid.
// Custom ranges replace the shipped reference labels but never the status.
// Readings without a range of their own fall back to the catalog.
func Project(normalized []models.NormalizedReport, idx *normalizer.Index, custom map[string]models.Range, catalog ranges.Catalog) models.Table {
	columns := idx.Biomarkers()
	table := models.Table{
		Columns: append([]string{}, columns...),
		Rows:    make([]models.TableRow, 0, len(normalized)),
	}
	for _, report := range normalized {
		row := models.TableRow{Date: report.ReportDate, Cells: make([]models.TableCell, 0, len(columns))}
		for _, name := range columns {
			r, ok := report.Biomarkers[name]
			row.Cells = append(row.Cells, cell(name, r, ok, custom, catalog))
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func cell(name string, r models.Reading, ok bool, custom map[string]models.Range, catalog ranges.Catalog) models.TableCell {
	v, numeric := r.Numeric()
	if !ok || !numeric {
		return models.TableCell{Value: placeholder}
	}
	c := models.TableCell{
		Present: true,
		Value:   formatFloat(v),
		Unit:    r.Unit,
		Status:  r.RawStatus,
		Source:  r.Source,
	}
	if ref, found := custom[name]; found {
		c.Reference = referenceLabel(ref, r.Unit)
	} else if r.ReferenceRange != nil {
		c.Reference = referenceLabel(*r.ReferenceRange, r.Unit)
	} else if b, found := catalog.Lookup(name); found {
		unit := r.Unit
		if unit == "" {
			unit = b.Unit
		}
		c.Reference = referenceLabel(models.Range{Min: b.Min, Max: b.Max}, unit)
	}
	if r.Confidence != nil {
		c.Confidence = fmt.Sprintf("%.0f%%", *r.Confidence*100)
	}
	return c
}

func referenceLabel(r models.Range, unit string) string {
	return strings.TrimSpace(fmt.Sprintf("%s - %s %s", formatFloat(r.Min), formatFloat(r.Max), unit))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func orPlaceholder(s string) string {
	if strings.TrimSpace(s) == "" {
		return placeholder
	}
	return s
}
