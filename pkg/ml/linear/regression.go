package linear

import "math"

type Fit struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// FitOLS computes the ordinary least-squares line through (xs, ys). When the
// xs have no variance the slope is 0 and the intercept is the mean of ys.
func FitOLS(xs, ys []float64) Fit {
	n := len(xs)
	if n == 0 || n != len(ys) {
		return Fit{}
	}
	xmean := mean(xs)
	ymean := mean(ys)

	var num, den float64
	for i := 0; i < n; i++ {
		num += (xs[i] - xmean) * (ys[i] - ymean)
		den += (xs[i] - xmean) * (xs[i] - xmean)
	}
	var slope float64
	if den != 0 {
		slope = num / den
	}
	return Fit{Slope: slope, Intercept: ymean - slope*xmean}
}

func (f Fit) Predict(x float64) float64 {
	return f.Slope*x + f.Intercept
}

// RSquared is the coefficient of determination of f over the points, capped
// at 1. It is 0 when ys have no variance.
func RSquared(f Fit, xs, ys []float64) float64 {
	if len(ys) == 0 || len(xs) != len(ys) {
		return 0
	}
	ymean := mean(ys)
	var ssTot, ssRes float64
	for i := range ys {
		ssTot += (ys[i] - ymean) * (ys[i] - ymean)
		residual := ys[i] - f.Predict(xs[i])
		ssRes += residual * residual
	}
	if ssTot == 0 {
		return 0
	}
	r2 := 1 - ssRes/ssTot
	if !Finite(r2) {
		return 0
	}
	return math.Min(r2, 1)
}

// Round2 rounds to two decimals with halves going up, as Math.round does.
// Magnitudes too large to scale are returned unchanged.
func Round2(v float64) float64 {
	scaled := v * 100
	if math.IsInf(scaled, 0) {
		return v
	}
	return math.Floor(scaled+0.5) / 100
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
