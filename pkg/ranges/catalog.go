package ranges

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"gopkg.in/yaml.v3"
)

const defaultRecommendation = "Continue monitoring and consult healthcare provider."

type Biomarker struct {
	Display           string            `yaml:"display" json:"display"`
	Unit              string            `yaml:"unit" json:"unit"`
	Min               float64           `yaml:"min" json:"min"`
	Max               float64           `yaml:"max" json:"max"`
	PopulationAverage *float64          `yaml:"population_average,omitempty" json:"population_average,omitempty"`
	Recommendations   map[string]string `yaml:"recommendations" json:"recommendations"`
}

type Catalog struct {
	Biomarkers map[string]Biomarker `yaml:"biomarkers" json:"biomarkers"`
}

func Load(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return DefaultCatalog(), err
	}
	var cat Catalog
	if err := yaml.Unmarshal(content, &cat); err != nil {
		return Catalog{}, err
	}
	if len(cat.Biomarkers) == 0 {
		return Catalog{}, fmt.Errorf("biomarker catalog empty")
	}
	return cat, nil
}

func (c Catalog) Lookup(name string) (Biomarker, bool) {
	if c.Biomarkers == nil {
		return Biomarker{}, false
	}
	if b, ok := c.Biomarkers[name]; ok {
		return b, true
	}
	for k, v := range c.Biomarkers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return Biomarker{}, false
}

// Recommendation returns the advice for a biomarker in the given status.
func (c Catalog) Recommendation(name string, status models.Status) string {
	if b, ok := c.Lookup(name); ok {
		if rec, ok := b.Recommendations[string(status)]; ok && rec != "" {
			return rec
		}
		for k, v := range b.Recommendations {
			if strings.EqualFold(k, string(status)) && v != "" {
				return v
			}
		}
	}
	return defaultRecommendation
}

func (c Catalog) PopulationAverage(name string) *float64 {
	b, ok := c.Lookup(name)
	if !ok || b.PopulationAverage == nil {
		return nil
	}
	avg := *b.PopulationAverage
	return &avg
}

// Range returns the catalog reference range for a biomarker.
func (c Catalog) Range(name string) (models.Range, bool) {
	b, ok := c.Lookup(name)
	if !ok {
		return models.Range{}, false
	}
	return models.Range{Min: b.Min, Max: b.Max}, true
}

func avg(v float64) *float64 { return &v }

func DefaultCatalog() Catalog {
	return Catalog{Biomarkers: map[string]Biomarker{
		"Total Cholesterol": {
			Display: "Total Cholesterol", Unit: "mg/dL", Min: 125, Max: 200, PopulationAverage: avg(170),
			Recommendations: map[string]string{
				"High": "Consider dietary changes, exercise, and medication if prescribed by your doctor.",
				"Low":  "Monitor for underlying health conditions that may cause low cholesterol.",
			},
		},
		"LDL": {
			Display: "LDL", Unit: "mg/dL", Min: 0, Max: 100, PopulationAverage: avg(90),
			Recommendations: map[string]string{
				"High": "Focus on heart-healthy diet, regular exercise, and consider medication.",
				"Low":  "Low LDL is generally good for heart health.",
			},
		},
		"HDL": {
			Display: "HDL", Unit: "mg/dL", Min: 40, Max: 60, PopulationAverage: avg(45),
			Recommendations: map[string]string{
				"High": "Excellent! High HDL is protective for heart health.",
				"Low":  "Increase physical activity and consider heart-healthy diet changes.",
			},
		},
		"Triglycerides": {
			Display: "Triglycerides", Unit: "mg/dL", Min: 0, Max: 150, PopulationAverage: avg(120),
			Recommendations: map[string]string{
				"High": "Reduce sugar and refined carbs, increase physical activity.",
				"Low":  "Low triglycerides are generally beneficial.",
			},
		},
		"Creatinine": {
			Display: "Creatinine", Unit: "mg/dL", Min: 0.6, Max: 1.3, PopulationAverage: avg(1.0),
			Recommendations: map[string]string{
				"High": "Consult with healthcare provider about kidney function.",
				"Low":  "May indicate reduced muscle mass or other conditions.",
			},
		},
		"Vitamin D": {
			Display: "Vitamin D", Unit: "ng/mL", Min: 30, Max: 100, PopulationAverage: avg(25),
			Recommendations: map[string]string{
				"High": "Consider reducing supplementation and consult healthcare provider.",
				"Low":  "Increase sun exposure, dietary sources, or consider supplementation.",
			},
		},
		"Vitamin B12": {
			Display: "Vitamin B12", Unit: "pg/mL", Min: 200, Max: 900, PopulationAverage: avg(350),
			Recommendations: map[string]string{
				"High": "High levels are usually not harmful but consult healthcare provider.",
				"Low":  "Consider B12 supplementation or dietary changes.",
			},
		},
		"HbA1c": {
			Display: "HbA1c", Unit: "%", Min: 4.0, Max: 5.6, PopulationAverage: avg(5.5),
			Recommendations: map[string]string{
				"High": "Focus on blood sugar management through diet, exercise, and medication.",
				"Low":  "Monitor for hypoglycemia or other conditions.",
			},
		},
	}}
}
