package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSweep(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write sweep file: %v", err)
	}
	return path
}

func TestLoadSweep(t *testing.T) {
	path := writeSweep(t, `
name: predator-prey
model: models/predator_prey.mo
replicates: 2
max_parallel: 4
parameters:
  - name: alpha
    values: [0.1, 0.2, 0.3]
  - name: beta
    values: [1, 2]
tags: [ecology, v2]
`)

	def, err := LoadSweep(path)
	if err != nil {
		t.Fatalf("LoadSweep: %v", err)
	}
	if def.Name != "predator-prey" {
		t.Errorf("Name = %q", def.Name)
	}
	if len(def.Parameters) != 2 || def.Parameters[0].Name != "alpha" || def.Parameters[1].Name != "beta" {
		t.Errorf("Parameters order not preserved: %+v", def.Parameters)
	}
	if got := def.TotalRuns(); got != 12 {
		t.Errorf("TotalRuns() = %d, want 12", got)
	}
}

func TestLoadSweep_Defaults(t *testing.T) {
	path := writeSweep(t, `
model: m.mo
parameters:
  - name: k
    values: [1]
`)
	def, err := LoadSweep(path)
	if err != nil {
		t.Fatalf("LoadSweep: %v", err)
	}
	if def.Replicates != 1 {
		t.Errorf("Replicates default = %d, want 1", def.Replicates)
	}
	if def.MaxParallel != 4 {
		t.Errorf("MaxParallel default = %d, want 4", def.MaxParallel)
	}
}

func TestSweepDefinition_Validate(t *testing.T) {
	tests := []struct {
		name string
		def  SweepDefinition
	}{
		{"missing model", SweepDefinition{Parameters: []ParameterAxis{{Name: "a", Values: []any{1}}}}},
		{"no axes", SweepDefinition{ModelPath: "m.mo"}},
		{"empty axis values", SweepDefinition{ModelPath: "m.mo", Parameters: []ParameterAxis{{Name: "a"}}}},
		{"unnamed axis", SweepDefinition{ModelPath: "m.mo", Parameters: []ParameterAxis{{Values: []any{1}}}}},
		{"duplicate axis", SweepDefinition{ModelPath: "m.mo", Parameters: []ParameterAxis{
			{Name: "a", Values: []any{1}}, {Name: "a", Values: []any{2}},
		}}},
		{"negative replicates", SweepDefinition{ModelPath: "m.mo", Replicates: -1,
			Parameters: []ParameterAxis{{Name: "a", Values: []any{1}}}}},
	}
	for _, tt := range tests {
		if err := tt.def.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
		}
	}
}
