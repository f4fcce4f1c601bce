package model

import "fmt"

// TimeColumn is the reserved data key holding the time axis.
const TimeColumn = "Time"

// SimulationResults is one run's output: named sample series over a
// shared, strictly non-decreasing time axis.
//
// Invariant: when Success is true, every series in Data has the same
// length as Index.
type SimulationResults struct {
	Success       bool                 `json:"success"`
	Data          map[string][]float64 `json:"data"`
	Columns       []string             `json:"columns"`
	Index         []float64            `json:"index"`
	ExecutionTime float64              `json:"execution_time,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// FailedResult returns a failed SimulationResults carrying a formatted
// error message. Pipeline stages use this for user-input-shaped errors
// instead of returning a Go error.
func FailedResult(format string, args ...any) *SimulationResults {
	return &SimulationResults{
		Success: false,
		Error:   fmt.Sprintf(format, args...),
	}
}

// Variables returns the column names excluding the time axis, in
// column order.
func (r *SimulationResults) Variables() []string {
	vars := make([]string, 0, len(r.Columns))
	for _, c := range r.Columns {
		if c == TimeColumn {
			continue
		}
		vars = append(vars, c)
	}
	return vars
}

// HasVariable reports whether name is present in Data.
func (r *SimulationResults) HasVariable(name string) bool {
	_, ok := r.Data[name]
	return ok
}

// Len returns the number of samples on the time axis.
func (r *SimulationResults) Len() int {
	return len(r.Index)
}

// Clone returns a deep copy. Pipeline stages never mutate their input.
func (r *SimulationResults) Clone() *SimulationResults {
	out := &SimulationResults{
		Success:       r.Success,
		Data:          make(map[string][]float64, len(r.Data)),
		Columns:       append([]string(nil), r.Columns...),
		Index:         append([]float64(nil), r.Index...),
		ExecutionTime: r.ExecutionTime,
		Error:         r.Error,
	}
	for name, series := range r.Data {
		out.Data[name] = append([]float64(nil), series...)
	}
	return out
}
