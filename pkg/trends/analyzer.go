package trends

import (
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/ml/linear"
	"github.com/synaptica-ai/biomarkers/pkg/normalizer"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
)

type Analyzer struct {
	catalog ranges.Catalog
}

func NewAnalyzer(catalog ranges.Catalog) *Analyzer {
	return &Analyzer{catalog: catalog}
}

// Analyze builds one Trend per biomarker seen in the chronologically sorted
// normalized reports.
func (a *Analyzer) Analyze(normalized []models.NormalizedReport) map[string]models.Trend {
	return a.AnalyzeIndex(normalizer.NewIndex(normalized))
}

func (a *Analyzer) AnalyzeIndex(idx *normalizer.Index) map[string]models.Trend {
	out := make(map[string]models.Trend, len(idx.Biomarkers()))
	for _, name := range idx.Biomarkers() {
		dates, readings := idx.Series(name)

		points := make([]models.TrendPoint, 0, len(readings))
		for i, r := range readings {
			v, ok := r.Numeric()
			if !ok {
				continue
			}
			points = append(points, models.TrendPoint{Date: dates[i], Value: v})
		}

		trend := a.build(name, points)
		if latest, ok := idx.Latest(name); ok {
			trend.Latest = &latest
		}
		out[name] = trend
	}
	return out
}

// FromPrecomputed adopts a trends block shipped with the dataset. Forecasts are
// always recomputed; a missing or unrecognised direction is derived.
func (a *Analyzer) FromPrecomputed(pre map[string]models.PrecomputedTrend, idx *normalizer.Index) map[string]models.Trend {
	out := make(map[string]models.Trend, len(pre))
	for key, p := range pre {
		n := len(p.Values)
		if len(p.Dates) < n {
			n = len(p.Dates)
		}
		points := make([]models.TrendPoint, 0, n)
		for i := 0; i < n; i++ {
			points = append(points, models.TrendPoint{Date: p.Dates[i], Value: p.Values[i]})
		}

		name := key
		if p.Biomarker != "" {
			name = p.Biomarker
		}
		trend := a.build(name, points)
		switch p.TrendDirection {
		case models.DirectionRising, models.DirectionFalling, models.DirectionStable:
			trend.Direction = p.TrendDirection
		}
		if p.TrendStrength != nil {
			trend.Strength = *p.TrendStrength
		}
		if p.ChangePercentage != nil {
			trend.ChangePercentage = *p.ChangePercentage
		}
		if idx != nil {
			if latest, ok := idx.Latest(key); ok {
				trend.Latest = &latest
			}
		}
		out[key] = trend
	}
	return out
}

func (a *Analyzer) build(name string, points []models.TrendPoint) models.Trend {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return models.Trend{
		Biomarker:         name,
		Points:            points,
		Direction:         Direction(values),
		Forecast:          PredictNext(points),
		ChangePercentage:  ChangePercentage(values),
		Strength:          Strength(values),
		PopulationAverage: a.catalog.PopulationAverage(name),
	}
}

// Direction compares the two most recent values.
func Direction(values []float64) string {
	if len(values) < 2 {
		return models.DirectionStable
	}
	latest, previous := values[len(values)-1], values[len(values)-2]
	switch {
	case latest > previous:
		return models.DirectionRising
	case latest < previous:
		return models.DirectionFalling
	default:
		return models.DirectionStable
	}
}

// PredictNext projects the series one step past its last date with a least
// squares line over days-since-first-point. The step is the gap between the
// first two points, or one day when they coincide. Nil with fewer than two
// points or when the projection overflows.
func PredictNext(points []models.TrendPoint) *float64 {
	if len(points) < 2 {
		return nil
	}
	t0 := points[0].Date
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Date.DaysSince(t0)
		ys[i] = p.Value
	}

	step := xs[1] - xs[0]
	if step == 0 {
		step = 1
	}
	nextX := xs[len(xs)-1] + step

	forecast := linear.Round2(linear.FitOLS(xs, ys).Predict(nextX))
	if !linear.Finite(forecast) {
		return nil
	}
	return &forecast
}

// ChangePercentage is the relative change from the first to the last value.
func ChangePercentage(values []float64) float64 {
	if len(values) < 2 || values[0] == 0 {
		return 0
	}
	change := (values[len(values)-1] - values[0]) / values[0] * 100
	if !linear.Finite(change) {
		return 0
	}
	return change
}

// Strength is the R² of a regression over sample positions.
func Strength(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	return linear.RSquared(linear.FitOLS(xs, values), xs, values)
}
