// Package filter provides stateless transforms over a simulation
// result: variable selection, time-window slicing, and downsampling.
// Every function returns a new result and never mutates its input;
// user-input-shaped problems come back as a failed result with a
// descriptive error, never as a Go error.
package filter

import (
	"sort"
	"strings"

	"github.com/me/gosweep/pkg/model"
)

// Variables keeps the time axis plus the intersection of names with the
// available variables. An empty intersection is an error naming what is
// available.
func Variables(result *model.SimulationResults, names []string) *model.SimulationResults {
	if !result.Success {
		return result.Clone()
	}

	keep := make(map[string]bool, len(names))
	for _, name := range names {
		if result.HasVariable(name) && name != model.TimeColumn {
			keep[name] = true
		}
	}
	if len(keep) == 0 {
		available := result.Variables()
		sort.Strings(available)
		return model.FailedResult("none of the requested variables exist; available: %s",
			strings.Join(available, ", "))
	}

	out := &model.SimulationResults{
		Success:       true,
		Data:          make(map[string][]float64, len(keep)+1),
		Index:         append([]float64(nil), result.Index...),
		ExecutionTime: result.ExecutionTime,
	}
	if timeSeries, ok := result.Data[model.TimeColumn]; ok {
		out.Data[model.TimeColumn] = append([]float64(nil), timeSeries...)
		out.Columns = append(out.Columns, model.TimeColumn)
	}
	for _, col := range result.Columns {
		if keep[col] {
			out.Data[col] = append([]float64(nil), result.Data[col]...)
			out.Columns = append(out.Columns, col)
		}
	}
	return out
}

// TimeRange slices every series to the samples whose time lies in
// [start, end]: from the first index with time >= start through the
// last index with time <= end. No sample at or after start is an error,
// as is start >= end.
func TimeRange(result *model.SimulationResults, start, end float64) *model.SimulationResults {
	if !result.Success {
		return result.Clone()
	}
	if start >= end {
		return model.FailedResult("invalid time range: start %g must be before end %g", start, end)
	}

	axis := result.Index
	if len(axis) == 0 {
		return model.FailedResult("result has no samples to slice")
	}
	lo := sort.Search(len(axis), func(i int) bool { return axis[i] >= start })
	if lo == len(axis) {
		return model.FailedResult("no samples at or after time %g (axis ends at %g)", start, axis[len(axis)-1])
	}
	// First index with time > end; absence means "through the end".
	hi := sort.Search(len(axis), func(i int) bool { return axis[i] > end })

	out := &model.SimulationResults{
		Success:       true,
		Data:          make(map[string][]float64, len(result.Data)),
		Columns:       append([]string(nil), result.Columns...),
		Index:         append([]float64(nil), axis[lo:hi]...),
		ExecutionTime: result.ExecutionTime,
	}
	for name, series := range result.Data {
		out.Data[name] = append([]float64(nil), series[lo:hi]...)
	}
	return out
}

// Downsample keeps indices 0, step, 2*step, ... and always forces the
// final sample in, even off-stride, so boundary information is never
// silently dropped.
func Downsample(result *model.SimulationResults, step int) *model.SimulationResults {
	if !result.Success {
		return result.Clone()
	}
	if step < 1 {
		return model.FailedResult("downsample step must be >= 1, got %d", step)
	}

	n := result.Len()
	picks := make([]int, 0, n/step+2)
	for i := 0; i < n; i += step {
		picks = append(picks, i)
	}
	if n > 0 && (len(picks) == 0 || picks[len(picks)-1] != n-1) {
		picks = append(picks, n-1)
	}

	out := &model.SimulationResults{
		Success:       true,
		Data:          make(map[string][]float64, len(result.Data)),
		Columns:       append([]string(nil), result.Columns...),
		Index:         make([]float64, 0, len(picks)),
		ExecutionTime: result.ExecutionTime,
	}
	for _, i := range picks {
		out.Index = append(out.Index, result.Index[i])
	}
	for name, series := range result.Data {
		sampled := make([]float64, 0, len(picks))
		for _, i := range picks {
			sampled = append(sampled, series[i])
		}
		out.Data[name] = sampled
	}
	return out
}
