package validate

import (
	"fmt"

	"github.com/me/gosweep/pkg/model"
)

// Options configures schema validation.
type Options struct {
	// RequiredVariables must all be present in the result's data.
	RequiredVariables []string

	// MinSamples/MaxSamples bound the time-axis length. Zero means
	// unbounded.
	MinSamples int
	MaxSamples int
}

// Report is the outcome of schema validation. Errors break validity;
// warnings flag suspicious but non-fatal shapes.
type Report struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Schema checks the structural invariants of a result: presence of the
// time axis, identical series lengths (a single mismatch is an error,
// not a warning), sample-count bounds, and required variables. Column
// bookkeeping mismatches are warnings.
func Schema(result *model.SimulationResults, opts *Options) Report {
	var rep Report
	if opts == nil {
		opts = &Options{}
	}

	if result == nil {
		rep.errorf("result is nil")
		return rep
	}
	if result.Data == nil {
		rep.errorf("data is missing")
		return rep
	}

	// Time axis: either the reserved data key or the parallel index.
	_, hasTimeKey := result.Data[model.TimeColumn]
	if !hasTimeKey && len(result.Index) == 0 {
		rep.errorf("no time axis: neither data[%q] nor index is present", model.TimeColumn)
	}

	n := len(result.Index)
	if n == 0 && hasTimeKey {
		n = len(result.Data[model.TimeColumn])
	}

	for name, series := range result.Data {
		if len(series) != n {
			rep.errorf("series %q has %d samples, want %d", name, len(series), n)
		}
	}

	if opts.MinSamples > 0 && n < opts.MinSamples {
		rep.errorf("only %d samples, minimum is %d", n, opts.MinSamples)
	}
	if opts.MaxSamples > 0 && n > opts.MaxSamples {
		rep.errorf("%d samples exceeds maximum %d", n, opts.MaxSamples)
	}

	for _, name := range opts.RequiredVariables {
		if _, ok := result.Data[name]; !ok {
			rep.errorf("required variable %q is missing", name)
		}
	}

	// Bookkeeping mismatches between columns and data are suspicious
	// but do not break downstream stages.
	for _, col := range result.Columns {
		if _, ok := result.Data[col]; !ok {
			rep.warnf("columns lists %q but data has no such series", col)
		}
	}
	if len(result.Columns) > 0 {
		listed := make(map[string]bool, len(result.Columns))
		for _, col := range result.Columns {
			listed[col] = true
		}
		for name := range result.Data {
			if !listed[name] {
				rep.warnf("data series %q is not listed in columns", name)
			}
		}
	}

	for i := 1; i < len(result.Index); i++ {
		if result.Index[i] < result.Index[i-1] {
			rep.warnf("time axis decreases at sample %d (%g -> %g)", i, result.Index[i-1], result.Index[i])
			break
		}
	}

	rep.Valid = len(rep.Errors) == 0
	return rep
}
