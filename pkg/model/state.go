package model

// RunStatus represents the lifecycle state of a RunSpec.
type RunStatus string

const (
	RunStatusQueued    RunStatus = "QUEUED"
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// String returns the string representation of the run status.
func (s RunStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the run is in a final state.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// ValidRunTransitions defines the allowed state transitions for runs.
// Transitions are strictly forward: a run never moves backward.
var ValidRunTransitions = map[RunStatus][]RunStatus{
	RunStatusQueued:  {RunStatusRunning, RunStatusFailed},
	RunStatusRunning: {RunStatusCompleted, RunStatusFailed},
}

// CanTransitionTo returns true if moving from the current status to next is valid.
func (s RunStatus) CanTransitionTo(next RunStatus) bool {
	for _, allowed := range ValidRunTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BatchPhase represents the lifecycle state of a whole batch session.
type BatchPhase string

const (
	BatchPhasePending   BatchPhase = "PENDING"
	BatchPhaseRunning   BatchPhase = "RUNNING"
	BatchPhaseCompleted BatchPhase = "COMPLETED"
)

// String returns the string representation of the batch phase.
func (p BatchPhase) String() string {
	return string(p)
}

// IsTerminal returns true if the batch has finished draining.
// A terminal batch may still contain failed runs; partial failure is an
// expected outcome, not an error state of its own.
func (p BatchPhase) IsTerminal() bool {
	return p == BatchPhaseCompleted
}
