package scheduler

import "github.com/me/gosweep/internal/config"

// ExpandCombinations produces the cartesian product of the parameter
// axes as a depth-first expansion in declared axis order: the last axis
// varies fastest. The output order is deterministic and fixes the
// enqueue order of runs.
func ExpandCombinations(axes []config.ParameterAxis) []map[string]any {
	if len(axes) == 0 {
		return nil
	}

	total := 1
	for _, axis := range axes {
		total *= len(axis.Values)
	}

	combos := make([]map[string]any, 0, total)
	current := make(map[string]any, len(axes))

	var expand func(depth int)
	expand = func(depth int) {
		if depth == len(axes) {
			combo := make(map[string]any, len(current))
			for name, value := range current {
				combo[name] = value
			}
			combos = append(combos, combo)
			return
		}
		axis := axes[depth]
		for _, value := range axis.Values {
			current[axis.Name] = value
			expand(depth + 1)
		}
		delete(current, axis.Name)
	}
	expand(0)

	return combos
}
