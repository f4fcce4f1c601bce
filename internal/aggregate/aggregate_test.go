package aggregate

import (
	"math"
	"reflect"
	"testing"

	"github.com/me/gosweep/pkg/model"
)

func seriesResult(name string, values []float64) *model.SimulationResults {
	index := make([]float64, len(values))
	for i := range index {
		index[i] = float64(i)
	}
	return &model.SimulationResults{
		Success: true,
		Data: map[string][]float64{
			model.TimeColumn: index,
			name:             values,
		},
		Columns: []string{model.TimeColumn, name},
		Index:   index,
	}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComputeStatistics(t *testing.T) {
	r := seriesResult("pop", []float64{100, 110, 121, 133, 146, 161})

	stats, failed := ComputeStatistics(r)
	if failed != nil {
		t.Fatalf("ComputeStatistics failed: %s", failed.Error)
	}
	s, ok := stats.Variables["pop"]
	if !ok {
		t.Fatal("no stats for pop")
	}
	if s.Min != 100 {
		t.Errorf("Min = %v, want 100", s.Min)
	}
	if s.Max != 161 {
		t.Errorf("Max = %v, want 161", s.Max)
	}
	if !almostEqual(s.Mean, 128.5) {
		t.Errorf("Mean = %v, want 128.5", s.Mean)
	}
	// Nearest-rank on the sorted array: floor(6*0.5)=3, floor(6*0.25)=1, floor(6*0.75)=4.
	if s.Median != 133 {
		t.Errorf("Median = %v, want 133", s.Median)
	}
	if s.P25 != 110 {
		t.Errorf("P25 = %v, want 110", s.P25)
	}
	if s.P75 != 146 {
		t.Errorf("P75 = %v, want 146", s.P75)
	}
	if stats.Samples != 6 || stats.TimeStart != 0 || stats.TimeEnd != 5 {
		t.Errorf("meta = %+v", stats)
	}
	if _, ok := stats.Variables[model.TimeColumn]; ok {
		t.Error("time axis must not be summarized")
	}
}

func TestComputeStatistics_PopulationStdDev(t *testing.T) {
	stats, failed := ComputeStatistics(seriesResult("x", []float64{2, 4, 4, 4, 5, 5, 7, 9}))
	if failed != nil {
		t.Fatalf("failed: %s", failed.Error)
	}
	// Classic population-stddev example: exactly 2.
	if got := stats.Variables["x"].StdDev; !almostEqual(got, 2) {
		t.Errorf("StdDev = %v, want 2", got)
	}
}

func TestComputeStatistics_Empty(t *testing.T) {
	r := &model.SimulationResults{Success: true, Data: map[string][]float64{}}
	if _, failed := ComputeStatistics(r); failed == nil {
		t.Fatal("expected failure for empty result")
	}
}

func TestMovingAverage_SameLengthEdges(t *testing.T) {
	r := seriesResult("x", []float64{1, 2, 3, 4, 5})
	out := MovingAverage(r, 3)
	if !out.Success {
		t.Fatalf("failed: %s", out.Error)
	}
	got := out.Data["x"]
	// Edge windows shrink: [1,2], [1,2,3], [2,3,4], [3,4,5], [4,5].
	want := []float64{1.5, 2, 3, 4, 4.5}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (no edge trimming)", len(got), len(want))
	}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Errorf("x[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if !reflect.DeepEqual(out.Data[model.TimeColumn], r.Data[model.TimeColumn]) {
		t.Error("time axis must pass through unchanged")
	}
}

func TestMovingAverage_WindowOne(t *testing.T) {
	r := seriesResult("x", []float64{3, 1, 4})
	out := MovingAverage(r, 1)
	if !reflect.DeepEqual(out.Data["x"], []float64{3, 1, 4}) {
		t.Errorf("window 1 must be identity, got %v", out.Data["x"])
	}
}

func TestMovingAverage_InvalidWindow(t *testing.T) {
	if out := MovingAverage(seriesResult("x", []float64{1}), 0); out.Success {
		t.Error("window 0 should fail")
	}
}

func TestCumulativeSum(t *testing.T) {
	out := CumulativeSum(seriesResult("x", []float64{1, 2, 3, -1}))
	if !out.Success {
		t.Fatalf("failed: %s", out.Error)
	}
	if !reflect.DeepEqual(out.Data["x"], []float64{1, 3, 6, 5}) {
		t.Errorf("cumsum = %v, want [1 3 6 5]", out.Data["x"])
	}
}

func TestComputeCorrelations(t *testing.T) {
	index := []float64{0, 1, 2, 3}
	r := &model.SimulationResults{
		Success: true,
		Data: map[string][]float64{
			model.TimeColumn: index,
			"up":             {1, 2, 3, 4},
			"down":           {4, 3, 2, 1},
			"flat":           {7, 7, 7, 7},
		},
		Columns: []string{model.TimeColumn, "up", "down", "flat"},
		Index:   index,
	}

	corr, failed := ComputeCorrelations(r)
	if failed != nil {
		t.Fatalf("failed: %s", failed.Error)
	}

	pos := map[string]int{}
	for i, v := range corr.Variables {
		pos[v] = i
	}
	get := func(a, b string) float64 { return corr.Matrix[pos[a]][pos[b]] }

	for _, v := range corr.Variables {
		if get(v, v) != 1 {
			t.Errorf("diagonal for %s = %v, want exactly 1", v, get(v, v))
		}
	}
	if !almostEqual(get("up", "down"), -1) {
		t.Errorf("corr(up, down) = %v, want -1", get("up", "down"))
	}
	if got := get("up", "flat"); got != 0 {
		t.Errorf("corr(up, flat) = %v, want 0 for a constant series", got)
	}
	if !almostEqual(get("up", "down"), get("down", "up")) {
		t.Error("matrix not symmetric")
	}
}

func TestAggregates_PassThroughFailedInput(t *testing.T) {
	failed := model.FailedResult("upstream broke")
	if _, f := ComputeStatistics(failed); f == nil || f.Success {
		t.Error("ComputeStatistics resurrected a failed result")
	}
	if out := MovingAverage(failed, 3); out.Success {
		t.Error("MovingAverage resurrected a failed result")
	}
	if out := CumulativeSum(failed); out.Success {
		t.Error("CumulativeSum resurrected a failed result")
	}
	if _, f := ComputeCorrelations(failed); f == nil || f.Success {
		t.Error("ComputeCorrelations resurrected a failed result")
	}
}
