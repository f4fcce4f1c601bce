package validate

import (
	"strings"
	"testing"

	"github.com/me/gosweep/pkg/model"
)

func validResults() *model.SimulationResults {
	return &model.SimulationResults{
		Success: true,
		Data: map[string][]float64{
			model.TimeColumn: {0, 1, 2, 3},
			"prey":           {10, 12, 15, 13},
			"predator":       {2, 3, 5, 4},
		},
		Columns: []string{model.TimeColumn, "prey", "predator"},
		Index:   []float64{0, 1, 2, 3},
	}
}

func TestSchema_Valid(t *testing.T) {
	rep := Schema(validResults(), nil)
	if !rep.Valid {
		t.Fatalf("Valid = false, errors: %v", rep.Errors)
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", rep.Warnings)
	}
}

func TestSchema_LengthMismatchIsError(t *testing.T) {
	r := validResults()
	r.Data["prey"] = r.Data["prey"][:3]

	rep := Schema(r, nil)
	if rep.Valid {
		t.Fatal("Valid = true for inconsistent series lengths")
	}
	found := false
	for _, e := range rep.Errors {
		if strings.Contains(e, "prey") {
			found = true
		}
	}
	if !found {
		t.Errorf("errors do not name the bad series: %v", rep.Errors)
	}
}

func TestSchema_MissingTimeAxis(t *testing.T) {
	r := &model.SimulationResults{
		Success: true,
		Data:    map[string][]float64{"x": {1, 2}},
		Columns: []string{"x"},
	}
	rep := Schema(r, nil)
	if rep.Valid {
		t.Fatal("Valid = true without a time axis")
	}
}

func TestSchema_RequiredVariables(t *testing.T) {
	rep := Schema(validResults(), &Options{RequiredVariables: []string{"prey", "wolves"}})
	if rep.Valid {
		t.Fatal("Valid = true with a missing required variable")
	}
}

func TestSchema_SampleBounds(t *testing.T) {
	if rep := Schema(validResults(), &Options{MinSamples: 10}); rep.Valid {
		t.Error("Valid = true below MinSamples")
	}
	if rep := Schema(validResults(), &Options{MaxSamples: 2}); rep.Valid {
		t.Error("Valid = true above MaxSamples")
	}
	if rep := Schema(validResults(), &Options{MinSamples: 2, MaxSamples: 10}); !rep.Valid {
		t.Errorf("Valid = false within bounds: %v", rep.Errors)
	}
}

func TestSchema_ColumnMismatchIsWarning(t *testing.T) {
	r := validResults()
	r.Columns = append(r.Columns, "ghost")

	rep := Schema(r, nil)
	if !rep.Valid {
		t.Fatalf("column/data mismatch should not break validity: %v", rep.Errors)
	}
	if len(rep.Warnings) == 0 {
		t.Error("expected a warning for the phantom column")
	}
}

func TestSchema_DecreasingIndexIsWarning(t *testing.T) {
	r := validResults()
	r.Index = []float64{0, 2, 1, 3}
	r.Data[model.TimeColumn] = r.Index

	rep := Schema(r, nil)
	if !rep.Valid {
		t.Fatalf("decreasing index should warn, not error: %v", rep.Errors)
	}
	if len(rep.Warnings) == 0 {
		t.Error("expected a warning for the decreasing time axis")
	}
}
