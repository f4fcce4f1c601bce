package model

import "time"

// Sweep is the persisted record of one parameter-sweep experiment.
// Definition holds the raw YAML the sweep was submitted with so the
// exact axes and ordering can be reproduced later.
type Sweep struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	ModelPath   string     `json:"model_path"`
	Definition  string     `json:"definition,omitempty"`
	Phase       BatchPhase `json:"phase"`
	MaxParallel int        `json:"max_parallel"`
	Replicates  int        `json:"replicates"`
	TotalRuns   int        `json:"total_runs"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// HistoryEntry is one persisted simulation result, keyed the same way
// the result cache keys entries (model path + parameter values).
type HistoryEntry struct {
	Key        string             `json:"key"`
	SweepID    string             `json:"sweep_id"`
	ModelPath  string             `json:"model_path"`
	Parameters map[string]any     `json:"parameters"`
	Tags       []string           `json:"tags,omitempty"`
	Results    *SimulationResults `json:"results,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// HistoryFilter selects history entries. Zero-valued fields match
// everything; Tags must all be present on an entry for it to match.
type HistoryFilter struct {
	ModelPath string
	Since     time.Time
	Until     time.Time
	Tags      []string
}
