package trends

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synaptica-ai/biomarkers/pkg/common/models"
	"github.com/synaptica-ai/biomarkers/pkg/normalizer"
	"github.com/synaptica-ai/biomarkers/pkg/ranges"
)

func val(v float64) *float64 { return &v }

func point(d models.Day, v float64) models.TrendPoint {
	return models.TrendPoint{Date: d, Value: v}
}

func TestPredictNextGolden(t *testing.T) {
	d0 := models.NewDay(2024, 1, 1)
	d1 := models.NewDay(2024, 1, 2)

	forecast := PredictNext([]models.TrendPoint{point(d0, 10), point(d1, 20)})
	require.NotNil(t, forecast)
	assert.Equal(t, 30.0, *forecast)
}

func TestPredictNextUsesFirstGapAsStep(t *testing.T) {
	d0 := models.NewDay(2024, 1, 1)
	forecast := PredictNext([]models.TrendPoint{
		point(d0, 45),
		point(models.NewDay(2024, 2, 1), 50),
	})
	require.NotNil(t, forecast)
	assert.Equal(t, 55.0, *forecast)
}

func TestPredictNextSameDayDefaultsStepToOne(t *testing.T) {
	d0 := models.NewDay(2024, 1, 1)
	// xs = 0, 0, 2: slope from OLS, step forced to one day.
	forecast := PredictNext([]models.TrendPoint{
		point(d0, 10),
		point(d0, 12),
		point(models.NewDay(2024, 1, 3), 16),
	})
	require.NotNil(t, forecast)
	// xmean 2/3, ymean 38/3, slope 2.5, intercept 11; next x = 3
	assert.Equal(t, 18.5, *forecast)
}

func TestPredictNextZeroVarianceIsMean(t *testing.T) {
	d0 := models.NewDay(2024, 1, 1)
	forecast := PredictNext([]models.TrendPoint{point(d0, 10), point(d0, 13)})
	require.NotNil(t, forecast)
	assert.Equal(t, 11.5, *forecast)
}

func TestPredictNextRounds(t *testing.T) {
	forecast := PredictNext([]models.TrendPoint{
		point(models.NewDay(2024, 1, 1), 1),
		point(models.NewDay(2024, 1, 4), 2),
		point(models.NewDay(2024, 1, 5), 2),
	})
	require.NotNil(t, forecast)
	assert.Equal(t, *forecast, float64(int(*forecast*100+0.5))/100)
}

func TestPredictNextInsufficientData(t *testing.T) {
	assert.Nil(t, PredictNext(nil))
	assert.Nil(t, PredictNext([]models.TrendPoint{point(models.NewDay(2024, 1, 1), 5)}))
}

func TestDirection(t *testing.T) {
	assert.Equal(t, models.DirectionStable, Direction(nil))
	assert.Equal(t, models.DirectionStable, Direction([]float64{5}))
	assert.Equal(t, models.DirectionRising, Direction([]float64{9, 1, 2}))
	assert.Equal(t, models.DirectionFalling, Direction([]float64{1, 3, 2}))
	assert.Equal(t, models.DirectionStable, Direction([]float64{1, 2, 2}))
}

func TestChangePercentageAndStrength(t *testing.T) {
	assert.InDelta(t, 25, ChangePercentage([]float64{40, 45, 50}), 1e-9)
	assert.Equal(t, 0.0, ChangePercentage([]float64{0, 10}))
	assert.Equal(t, 0.0, ChangePercentage([]float64{10}))

	assert.InDelta(t, 1, Strength([]float64{40, 45, 50}), 1e-9)
	assert.Equal(t, 0.0, Strength([]float64{7}))
}

func TestExtremeValuesStayFinite(t *testing.T) {
	d0 := models.NewDay(2024, 1, 1)
	d1 := models.NewDay(2024, 1, 2)

	large := PredictNext([]models.TrendPoint{point(d0, 1e307), point(d1, 1.5e307)})
	require.NotNil(t, large)
	assert.InEpsilon(t, 2e307, *large, 1e-6)

	assert.Nil(t, PredictNext([]models.TrendPoint{point(d0, 1e308), point(d1, 1.7e308)}))
	assert.Equal(t, 0.0, Strength([]float64{1e308, 1.7e308}))
	assert.Equal(t, 0.0, ChangePercentage([]float64{-1e308, 1.7e308}))

	normalized := []models.NormalizedReport{
		{ReportDate: d0, Biomarkers: map[string]models.Reading{"CRP": {Value: val(1e308)}}},
		{ReportDate: d1, Biomarkers: map[string]models.Reading{"CRP": {Value: val(1.7e308)}}},
	}
	trends := NewAnalyzer(ranges.Catalog{}).Analyze(normalized)
	assert.Nil(t, trends["CRP"].Forecast)
	_, err := json.Marshal(trends)
	assert.NoError(t, err)
}

func TestAnalyzeSparseSeries(t *testing.T) {
	d1 := models.NewDay(2024, 1, 1)
	d2 := models.NewDay(2024, 2, 1)
	d3 := models.NewDay(2024, 3, 1)
	normalized := []models.NormalizedReport{
		{ReportDate: d1, Biomarkers: map[string]models.Reading{"HDL": {Value: val(40)}, "LDL": {Value: val(120)}}},
		{ReportDate: d2, Biomarkers: map[string]models.Reading{"LDL": {Value: val(110)}}},
		{ReportDate: d3, Biomarkers: map[string]models.Reading{"HDL": {Value: val(38), RawStatus: "Low"}, "Note": {}}},
	}

	got := NewAnalyzer(ranges.DefaultCatalog()).Analyze(normalized)
	require.Len(t, got, 3)

	hdl := got["HDL"]
	assert.Equal(t, []models.TrendPoint{point(d1, 40), point(d3, 38)}, hdl.Points)
	assert.Equal(t, models.DirectionFalling, hdl.Direction)
	require.NotNil(t, hdl.Latest)
	assert.Equal(t, "Low", hdl.Latest.RawStatus)
	require.NotNil(t, hdl.PopulationAverage)
	assert.Equal(t, 45.0, *hdl.PopulationAverage)

	note := got["Note"]
	assert.Empty(t, note.Points)
	assert.Equal(t, models.DirectionStable, note.Direction)
	assert.Nil(t, note.Forecast)
}

func TestAnalyzeSinglePointHasNoForecast(t *testing.T) {
	got := NewAnalyzer(ranges.Catalog{}).Analyze([]models.NormalizedReport{
		{ReportDate: models.NewDay(2024, 1, 1), Biomarkers: map[string]models.Reading{"HDL": {Value: val(40)}}},
	})
	assert.Nil(t, got["HDL"].Forecast)
	assert.Equal(t, models.DirectionStable, got["HDL"].Direction)
}

func TestFromPrecomputed(t *testing.T) {
	d1 := models.NewDay(2024, 1, 1)
	d2 := models.NewDay(2024, 1, 2)
	normalized := []models.NormalizedReport{
		{ReportDate: d2, Biomarkers: map[string]models.Reading{"LDL": {Value: val(20), RawStatus: "Normal"}}},
	}
	pre := map[string]models.PrecomputedTrend{
		"LDL": {Biomarker: "LDL", Values: []float64{10, 20, 99}, Dates: []models.Day{d1, d2}, TrendDirection: "falling"},
		"HDL": {Values: []float64{50, 40}, Dates: []models.Day{d1, d2}, TrendDirection: "sideways"},
	}

	got := NewAnalyzer(ranges.DefaultCatalog()).FromPrecomputed(pre, normalizer.NewIndex(normalized))

	ldl := got["LDL"]
	assert.Len(t, ldl.Points, 2)
	assert.Equal(t, models.DirectionFalling, ldl.Direction, "shipped direction is kept")
	require.NotNil(t, ldl.Forecast)
	assert.Equal(t, 30.0, *ldl.Forecast)
	require.NotNil(t, ldl.Latest)

	hdl := got["HDL"]
	assert.Equal(t, "HDL", hdl.Biomarker)
	assert.Equal(t, models.DirectionFalling, hdl.Direction, "invalid direction is derived")
	assert.Nil(t, hdl.Latest)
}
