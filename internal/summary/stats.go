// Package summary produces the descriptive statistics report for the
// analytic state-year sample.
package summary

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
)

// ErrNoValues is returned when a statistic is requested over no values.
var ErrNoValues = eris.New("summary: no numeric values")

// Stats describes one numeric series. Std is the sample standard deviation
// and is NaN for fewer than two values.
type Stats struct {
	Mean, Std, Min, Max, Median float64
	Count                       int
}

// Describe computes basic stats, skipping NaN values
func Describe(values []float64) (Stats, error) {
	vals := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return Stats{}, ErrNoValues
	}

	sort.Float64s(vals)
	s := Stats{Min: vals[0], Max: vals[len(vals)-1], Count: len(vals), Std: math.NaN()}

	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	s.Mean = sum / float64(len(vals))

	if len(vals)%2 == 0 {
		s.Median = (vals[len(vals)/2-1] + vals[len(vals)/2]) / 2
	} else {
		s.Median = vals[len(vals)/2]
	}

	if len(vals) > 1 {
		ss := 0.0
		for _, v := range vals {
			ss += (v - s.Mean) * (v - s.Mean)
		}
		s.Std = math.Sqrt(ss / float64(len(vals)-1))
	}
	return s, nil
}

// Trend fits y = slope*x + b by least squares. ok is false with fewer than
// three points or no variation in x.
func Trend(xs, ys []float64) (slope, rsquared float64, ok bool) {
	if len(xs) != len(ys) || len(xs) < 3 {
		return 0, 0, false
	}
	n := float64(len(xs))

	sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0
	for i := range xs {
		sumX += xs[i]
		sumY += ys[i]
		sumXY += xs[i] * ys[i]
		sumX2 += xs[i] * xs[i]
	}

	numerator := n*sumXY - sumX*sumY
	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0, 0, false
	}
	slope = numerator / denominator

	meanY := sumY / n
	intercept := meanY - slope*(sumX/n)
	ssTotal, ssResidual := 0.0, 0.0
	for i := range xs {
		predicted := slope*xs[i] + intercept
		ssTotal += (ys[i] - meanY) * (ys[i] - meanY)
		ssResidual += (ys[i] - predicted) * (ys[i] - predicted)
	}
	if ssTotal == 0 {
		return slope, 1, true
	}
	return slope, 1 - ssResidual/ssTotal, true
}
