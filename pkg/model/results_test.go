package model

import "testing"

func sampleResults() *SimulationResults {
	return &SimulationResults{
		Success: true,
		Data: map[string][]float64{
			TimeColumn: {0, 1, 2},
			"x":        {10, 20, 30},
			"y":        {1.5, 2.5, 3.5},
		},
		Columns: []string{TimeColumn, "x", "y"},
		Index:   []float64{0, 1, 2},
	}
}

func TestSimulationResults_Variables(t *testing.T) {
	r := sampleResults()
	vars := r.Variables()
	if len(vars) != 2 || vars[0] != "x" || vars[1] != "y" {
		t.Errorf("Variables() = %v, want [x y]", vars)
	}
}

func TestSimulationResults_Clone(t *testing.T) {
	r := sampleResults()
	c := r.Clone()

	c.Data["x"][0] = 999
	c.Index[0] = 999
	c.Columns[0] = "mutated"

	if r.Data["x"][0] != 10 {
		t.Errorf("Clone shares Data with original")
	}
	if r.Index[0] != 0 {
		t.Errorf("Clone shares Index with original")
	}
	if r.Columns[0] != TimeColumn {
		t.Errorf("Clone shares Columns with original")
	}
}

func TestFailedResult(t *testing.T) {
	r := FailedResult("bad window %d", 0)
	if r.Success {
		t.Errorf("FailedResult Success = true, want false")
	}
	if r.Error != "bad window 0" {
		t.Errorf("Error = %q, want %q", r.Error, "bad window 0")
	}
}
