// Package aggregate provides stateless statistical transforms over a
// simulation result: summary statistics, moving average, cumulative
// sum, and pairwise correlations.
package aggregate

import (
	"math"
	"sort"

	"github.com/me/gosweep/pkg/model"
)

// VariableStats holds summary statistics for one variable.
type VariableStats struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
	P25    float64 `json:"p25"`
	P75    float64 `json:"p75"`
}

// Statistics is the summary-statistics report for a result.
type Statistics struct {
	Variables map[string]VariableStats `json:"variables"`
	Samples   int                      `json:"samples"`
	TimeStart float64                  `json:"time_start"`
	TimeEnd   float64                  `json:"time_end"`
}

// ComputeStatistics calculates per-variable summary statistics over all
// non-time variables. Percentiles use nearest-rank indexing
// (floor(n*p), clamped to n-1) on the sorted samples; the standard
// deviation is the population form.
func ComputeStatistics(result *model.SimulationResults) (*Statistics, *model.SimulationResults) {
	if !result.Success {
		return nil, result.Clone()
	}
	if result.Len() == 0 {
		return nil, model.FailedResult("cannot compute statistics over an empty result")
	}

	stats := &Statistics{
		Variables: make(map[string]VariableStats),
		Samples:   result.Len(),
		TimeStart: result.Index[0],
		TimeEnd:   result.Index[len(result.Index)-1],
	}
	for name, series := range result.Data {
		if name == model.TimeColumn || len(series) == 0 {
			continue
		}
		stats.Variables[name] = summarize(series)
	}
	return stats, nil
}

func summarize(series []float64) VariableStats {
	n := len(series)
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)

	var sum float64
	for _, v := range series {
		sum += v
	}
	mean := sum / float64(n)

	var sqDiff float64
	for _, v := range series {
		d := v - mean
		sqDiff += d * d
	}

	return VariableStats{
		Mean:   mean,
		StdDev: math.Sqrt(sqDiff / float64(n)),
		Min:    sorted[0],
		Max:    sorted[n-1],
		Median: percentile(sorted, 0.5),
		P25:    percentile(sorted, 0.25),
		P75:    percentile(sorted, 0.75),
	}
}

// percentile picks from a sorted slice by nearest rank: floor(n*p),
// clamped to n-1.
func percentile(sorted []float64, p float64) float64 {
	idx := int(math.Floor(float64(len(sorted)) * p))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// MovingAverage smooths every non-time variable with a centered window
// of the given size. The output has the same length as the input: edge
// windows are simply smaller, nothing is trimmed.
func MovingAverage(result *model.SimulationResults, window int) *model.SimulationResults {
	if !result.Success {
		return result.Clone()
	}
	if window <= 0 {
		return model.FailedResult("moving-average window must be > 0, got %d", window)
	}

	out := result.Clone()
	half := window / 2
	for name, series := range result.Data {
		if name == model.TimeColumn {
			continue
		}
		n := len(series)
		smoothed := make([]float64, n)
		for i := 0; i < n; i++ {
			lo := i - half
			if lo < 0 {
				lo = 0
			}
			hi := i + (window+1)/2
			if hi > n {
				hi = n
			}
			var sum float64
			for j := lo; j < hi; j++ {
				sum += series[j]
			}
			smoothed[i] = sum / float64(hi-lo)
		}
		out.Data[name] = smoothed
	}
	return out
}

// CumulativeSum replaces every non-time variable with its running total.
func CumulativeSum(result *model.SimulationResults) *model.SimulationResults {
	if !result.Success {
		return result.Clone()
	}

	out := result.Clone()
	for name, series := range result.Data {
		if name == model.TimeColumn {
			continue
		}
		running := make([]float64, len(series))
		var sum float64
		for i, v := range series {
			sum += v
			running[i] = sum
		}
		out.Data[name] = running
	}
	return out
}

// Correlations is a symmetric matrix of Pearson correlation
// coefficients between non-time variables.
type Correlations struct {
	Variables []string    `json:"variables"`
	Matrix    [][]float64 `json:"matrix"`
}

// ComputeCorrelations calculates the Pearson coefficient for every pair
// of non-time variables. The diagonal is exactly 1; a pair involving a
// constant series (zero denominator) yields 0 rather than NaN.
func ComputeCorrelations(result *model.SimulationResults) (*Correlations, *model.SimulationResults) {
	if !result.Success {
		return nil, result.Clone()
	}

	vars := result.Variables()
	corr := &Correlations{
		Variables: vars,
		Matrix:    make([][]float64, len(vars)),
	}
	for i := range corr.Matrix {
		corr.Matrix[i] = make([]float64, len(vars))
	}

	for i, a := range vars {
		corr.Matrix[i][i] = 1
		for j := i + 1; j < len(vars); j++ {
			r := pearson(result.Data[a], result.Data[vars[j]])
			corr.Matrix[i][j] = r
			corr.Matrix[j][i] = r
		}
	}
	return corr, nil
}

func pearson(x, y []float64) float64 {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n == 0 {
		return 0
	}

	var sumX, sumY float64
	for i := 0; i < n; i++ {
		sumX += x[i]
		sumY += y[i]
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var cov, varX, varY float64
	for i := 0; i < n; i++ {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	denom := math.Sqrt(varX * varY)
	if denom == 0 {
		return 0
	}
	return cov / denom
}
