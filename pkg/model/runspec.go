package model

import "time"

// RunSpec is a single (parameter-combination x replicate) unit of work.
// Parameters are immutable once enqueued; status moves strictly forward
// (queued -> running -> completed|failed). A RunSpec is never deleted,
// only moved between the batch containers, so the full experiment
// history stays reconstructable.
type RunSpec struct {
	ID             string         `json:"id"`
	SessionID      string         `json:"session_id"`
	Parameters     map[string]any `json:"parameters"`
	ReplicateIndex int            `json:"replicate_index"`
	Status         RunStatus      `json:"status"`

	// EnvID is the execution-substrate handle, set once the run is admitted.
	EnvID string `json:"env_id,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// CompletedRun records a run that produced a parsed result.
type CompletedRun struct {
	Run         *RunSpec           `json:"run"`
	Results     *SimulationResults `json:"results"`
	Duration    time.Duration      `json:"duration_ns"`
	CompletedAt time.Time          `json:"completed_at"`
}

// FailedRun records a run that terminated without a usable result.
type FailedRun struct {
	Run      *RunSpec  `json:"run"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failed_at"`
}

// RunSummary provides aggregate counts over the batch containers.
type RunSummary struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Percentage returns retired work as a fraction of the total, in [0, 100].
func (s RunSummary) Percentage() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed+s.Failed) / float64(s.Total) * 100
}
