// Package derive computes new result series from user expressions
// evaluated with JavaScript (goja). An expression sees each sample's
// variables by name plus the time value as t, e.g. "predator / prey"
// or "Math.log(pop) * t".
package derive

import (
	"fmt"

	"github.com/dop251/goja"
	"github.com/me/gosweep/pkg/model"
)

// Series evaluates expr once per sample and returns a new result with
// the derived series appended under name. Expression problems come back
// as a failed result, never a Go error: derived series are
// user-supplied input like every other pipeline argument.
func Series(result *model.SimulationResults, name, expr string) *model.SimulationResults {
	if !result.Success {
		return result.Clone()
	}
	if name == "" || name == model.TimeColumn {
		return model.FailedResult("invalid derived-series name %q", name)
	}
	if result.HasVariable(name) {
		return model.FailedResult("series %q already exists", name)
	}
	if expr == "" {
		return model.FailedResult("empty expression for derived series %q", name)
	}

	vm := goja.New()
	program, err := goja.Compile(name, expr, true)
	if err != nil {
		return model.FailedResult("compile expression for %q: %v", name, err)
	}

	n := result.Len()
	derived := make([]float64, n)

	// Columns may declare names with no backing series (the validator
	// only warns about those), so bind only what Data actually holds.
	vars := make([]string, 0, len(result.Data))
	for _, v := range result.Variables() {
		if _, ok := result.Data[v]; ok {
			vars = append(vars, v)
		}
	}

	for i := 0; i < n; i++ {
		for _, v := range vars {
			if err := vm.Set(v, result.Data[v][i]); err != nil {
				return model.FailedResult("bind %q: %v", v, err)
			}
		}
		if err := vm.Set("t", result.Index[i]); err != nil {
			return model.FailedResult("bind t: %v", err)
		}

		value, err := vm.RunProgram(program)
		if err != nil {
			return model.FailedResult("evaluate %q at sample %d: %v", name, i, err)
		}
		derived[i] = value.ToFloat()
	}

	out := result.Clone()
	out.Data[name] = derived
	out.Columns = append(out.Columns, name)
	return out
}

// Validate compiles expr without evaluating it, returning a descriptive
// error for syntactically broken expressions.
func Validate(expr string) error {
	if expr == "" {
		return fmt.Errorf("empty expression")
	}
	if _, err := goja.Compile("expr", expr, true); err != nil {
		return fmt.Errorf("compile expression: %w", err)
	}
	return nil
}
