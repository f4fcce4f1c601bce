package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParameterAxis is one swept parameter and its candidate values.
// Axes are a list, not a map: the declared order fixes the cartesian
// expansion order and therefore the enqueue order of runs.
type ParameterAxis struct {
	Name   string `yaml:"name" json:"name"`
	Values []any  `yaml:"values" json:"values"`
}

// SweepDefinition describes one parameter-sweep experiment.
type SweepDefinition struct {
	Name        string          `yaml:"name"`
	ModelPath   string          `yaml:"model"`
	Parameters  []ParameterAxis `yaml:"parameters"`
	Replicates  int             `yaml:"replicates"`
	MaxParallel int             `yaml:"max_parallel"`
	Tags        []string        `yaml:"tags,omitempty"`
}

// LoadSweep reads and validates a sweep definition from a YAML file.
func LoadSweep(path string) (*SweepDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sweep file %s: %w", path, err)
	}
	var def SweepDefinition
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("parse sweep file %s: %w", path, err)
	}
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("sweep file %s: %w", path, err)
	}
	return &def, nil
}

// Validate checks structural requirements and fills defaults
// (replicates 1, max_parallel 4).
func (d *SweepDefinition) Validate() error {
	if d.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if len(d.Parameters) == 0 {
		return fmt.Errorf("at least one parameter axis is required")
	}
	seen := make(map[string]bool, len(d.Parameters))
	for i, axis := range d.Parameters {
		if axis.Name == "" {
			return fmt.Errorf("parameter axis %d: name is required", i)
		}
		if len(axis.Values) == 0 {
			return fmt.Errorf("parameter axis %q: at least one value is required", axis.Name)
		}
		if seen[axis.Name] {
			return fmt.Errorf("parameter axis %q declared twice", axis.Name)
		}
		seen[axis.Name] = true
	}
	if d.Replicates == 0 {
		d.Replicates = 1
	}
	if d.Replicates < 0 {
		return fmt.Errorf("replicates must be >= 1, got %d", d.Replicates)
	}
	if d.MaxParallel == 0 {
		d.MaxParallel = 4
	}
	if d.MaxParallel < 0 {
		return fmt.Errorf("max_parallel must be >= 1, got %d", d.MaxParallel)
	}
	return nil
}

// TotalRuns returns combinations x replicates for this definition.
func (d *SweepDefinition) TotalRuns() int {
	total := 1
	for _, axis := range d.Parameters {
		total *= len(axis.Values)
	}
	return total * d.Replicates
}
