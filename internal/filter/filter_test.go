package filter

import (
	"reflect"
	"strings"
	"testing"

	"github.com/me/gosweep/pkg/model"
)

func testResults() *model.SimulationResults {
	return &model.SimulationResults{
		Success: true,
		Data: map[string][]float64{
			model.TimeColumn: {0, 1, 2, 3, 4, 5},
			"prey":           {10, 12, 15, 13, 11, 9},
			"predator":       {2, 3, 5, 6, 4, 3},
		},
		Columns: []string{model.TimeColumn, "prey", "predator"},
		Index:   []float64{0, 1, 2, 3, 4, 5},
	}
}

func TestVariables_KeepsTimeAndSelection(t *testing.T) {
	out := Variables(testResults(), []string{"prey"})
	if !out.Success {
		t.Fatalf("Success = false: %s", out.Error)
	}
	if _, ok := out.Data[model.TimeColumn]; !ok {
		t.Error("time axis dropped")
	}
	if _, ok := out.Data["prey"]; !ok {
		t.Error("selected variable dropped")
	}
	if _, ok := out.Data["predator"]; ok {
		t.Error("unselected variable kept")
	}
	if !reflect.DeepEqual(out.Columns, []string{model.TimeColumn, "prey"}) {
		t.Errorf("Columns = %v", out.Columns)
	}
}

func TestVariables_EmptyIntersection(t *testing.T) {
	out := Variables(testResults(), []string{"wolves"})
	if out.Success {
		t.Fatal("Success = true for empty intersection")
	}
	if !strings.Contains(out.Error, "predator") || !strings.Contains(out.Error, "prey") {
		t.Errorf("error does not name available variables: %q", out.Error)
	}
}

func TestVariables_Idempotent(t *testing.T) {
	names := []string{"prey", "predator"}
	once := Variables(testResults(), names)
	twice := Variables(once, names)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("filter is not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestVariables_DoesNotMutateInput(t *testing.T) {
	in := testResults()
	out := Variables(in, []string{"prey"})
	out.Data["prey"][0] = 999
	if in.Data["prey"][0] != 10 {
		t.Error("input mutated through output")
	}
}

func TestTimeRange(t *testing.T) {
	out := TimeRange(testResults(), 1.5, 4)
	if !out.Success {
		t.Fatalf("Success = false: %s", out.Error)
	}
	if !reflect.DeepEqual(out.Index, []float64{2, 3, 4}) {
		t.Errorf("Index = %v, want [2 3 4]", out.Index)
	}
	if !reflect.DeepEqual(out.Data["prey"], []float64{15, 13, 11}) {
		t.Errorf("prey = %v, want [15 13 11]", out.Data["prey"])
	}
}

func TestTimeRange_OpenEnd(t *testing.T) {
	// end beyond the axis means "through the end".
	out := TimeRange(testResults(), 4, 100)
	if !out.Success {
		t.Fatalf("Success = false: %s", out.Error)
	}
	if !reflect.DeepEqual(out.Index, []float64{4, 5}) {
		t.Errorf("Index = %v, want [4 5]", out.Index)
	}
}

func TestTimeRange_Invalid(t *testing.T) {
	if out := TimeRange(testResults(), 3, 3); out.Success {
		t.Error("start == end should fail")
	}
	if out := TimeRange(testResults(), 5, 2); out.Success {
		t.Error("start > end should fail")
	}
	if out := TimeRange(testResults(), 50, 60); out.Success {
		t.Error("range past the axis should fail")
	}
}

func TestTimeRange_EmptyAxis(t *testing.T) {
	// A payload with zero samples validates (the Time key exists), so
	// slicing must degrade to a failed result, not panic.
	empty := &model.SimulationResults{
		Success: true,
		Data:    map[string][]float64{model.TimeColumn: {}},
		Columns: []string{model.TimeColumn},
		Index:   []float64{},
	}
	out := TimeRange(empty, 0, 10)
	if out.Success {
		t.Fatal("Success = true for empty axis")
	}
	if !strings.Contains(out.Error, "no samples") {
		t.Errorf("error = %q, want it to mention missing samples", out.Error)
	}
}

func TestDownsample_BoundaryLaw(t *testing.T) {
	r := testResults()
	for step := 1; step <= 8; step++ {
		out := Downsample(r, step)
		if !out.Success {
			t.Fatalf("step %d: %s", step, out.Error)
		}
		idx := out.Index
		if idx[0] != r.Index[0] {
			t.Errorf("step %d: first sample %v, want %v", step, idx[0], r.Index[0])
		}
		if idx[len(idx)-1] != r.Index[len(r.Index)-1] {
			t.Errorf("step %d: last sample %v, want %v", step, idx[len(idx)-1], r.Index[len(r.Index)-1])
		}
		for name, series := range out.Data {
			if len(series) != len(idx) {
				t.Errorf("step %d: series %q has %d samples, index has %d", step, name, len(series), len(idx))
			}
		}
	}
}

func TestDownsample_Stride(t *testing.T) {
	out := Downsample(testResults(), 2)
	// 0, 2, 4 on-stride plus the forced final sample 5.
	if !reflect.DeepEqual(out.Index, []float64{0, 2, 4, 5}) {
		t.Errorf("Index = %v, want [0 2 4 5]", out.Index)
	}
}

func TestDownsample_InvalidStep(t *testing.T) {
	if out := Downsample(testResults(), 0); out.Success {
		t.Error("step 0 should fail")
	}
}

func TestFilters_PassThroughFailedInput(t *testing.T) {
	failed := model.FailedResult("upstream broke")
	if out := Variables(failed, []string{"x"}); out.Success {
		t.Error("Variables resurrected a failed result")
	}
	if out := TimeRange(failed, 0, 1); out.Success {
		t.Error("TimeRange resurrected a failed result")
	}
	if out := Downsample(failed, 2); out.Success {
		t.Error("Downsample resurrected a failed result")
	}
}
