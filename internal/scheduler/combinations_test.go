package scheduler

import (
	"testing"

	"github.com/me/gosweep/internal/config"
)

func TestExpandCombinations_Order(t *testing.T) {
	axes := []config.ParameterAxis{
		{Name: "alpha", Values: []any{0.1, 0.2}},
		{Name: "beta", Values: []any{1, 2, 3}},
	}

	combos := ExpandCombinations(axes)
	if len(combos) != 6 {
		t.Fatalf("len = %d, want 6", len(combos))
	}

	// Depth-first in declared axis order: the last axis varies fastest.
	want := []map[string]any{
		{"alpha": 0.1, "beta": 1},
		{"alpha": 0.1, "beta": 2},
		{"alpha": 0.1, "beta": 3},
		{"alpha": 0.2, "beta": 1},
		{"alpha": 0.2, "beta": 2},
		{"alpha": 0.2, "beta": 3},
	}
	for i, combo := range combos {
		for name, value := range want[i] {
			if combo[name] != value {
				t.Errorf("combo %d: %s = %v, want %v", i, name, combo[name], value)
			}
		}
	}
}

func TestExpandCombinations_SingleAxis(t *testing.T) {
	combos := ExpandCombinations([]config.ParameterAxis{
		{Name: "k", Values: []any{10}},
	})
	if len(combos) != 1 || combos[0]["k"] != 10 {
		t.Errorf("combos = %v", combos)
	}
}

func TestExpandCombinations_Empty(t *testing.T) {
	if combos := ExpandCombinations(nil); combos != nil {
		t.Errorf("ExpandCombinations(nil) = %v, want nil", combos)
	}
}

func TestExpandCombinations_Independent(t *testing.T) {
	combos := ExpandCombinations([]config.ParameterAxis{
		{Name: "a", Values: []any{1, 2}},
	})
	combos[0]["a"] = 99
	if combos[1]["a"] != 2 {
		t.Error("combinations share a map")
	}
}
