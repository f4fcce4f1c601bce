package scheduler

import (
	"sync"
	"time"

	"github.com/me/gosweep/pkg/model"
)

// BatchState holds the four run containers for one experiment session.
// Every RunSpec lives in exactly one of queue/running/completed/failed
// at any time; moves between containers happen under one mutex so a
// run is never visible in two containers at once. Runs are moved, never
// deleted, so the union of the containers always equals the enqueued set.
type BatchState struct {
	mu        sync.Mutex
	queue     []*model.RunSpec
	running   map[string]*model.RunSpec // keyed by substrate handle
	completed []*model.CompletedRun
	failed    []*model.FailedRun

	// results collects parsed outputs of completed runs in completion order.
	results []*model.SimulationResults

	// envs records every substrate handle ever created for this session,
	// for cleanup.
	envs []string

	baseImage string
	total     int
}

// NewBatchState creates an empty BatchState.
func NewBatchState() *BatchState {
	return &BatchState{
		running: make(map[string]*model.RunSpec),
	}
}

// Push appends runs to the tail of the queue.
func (b *BatchState) Push(runs ...*model.RunSpec) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, runs...)
	b.total += len(runs)
}

// Summary returns the current container counts.
func (b *BatchState) Summary() model.RunSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	return model.RunSummary{
		Total:     b.total,
		Queued:    len(b.queue),
		Running:   len(b.running),
		Completed: len(b.completed),
		Failed:    len(b.failed),
	}
}

// Phase derives the batch phase from the containers: pending until any
// run has been admitted, completed once queue and running are both
// empty (failed runs included; partial failure is terminal too).
func (b *BatchState) Phase() model.BatchPhase {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.total == 0 || (len(b.queue) == b.total && len(b.running) == 0) {
		return model.BatchPhasePending
	}
	if len(b.queue) == 0 && len(b.running) == 0 {
		return model.BatchPhaseCompleted
	}
	return model.BatchPhaseRunning
}

// Queued returns a snapshot of the queue in FIFO order.
func (b *BatchState) Queued() []*model.RunSpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*model.RunSpec(nil), b.queue...)
}

// Running returns a snapshot of the in-flight runs keyed by handle.
func (b *BatchState) Running() map[string]*model.RunSpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	snapshot := make(map[string]*model.RunSpec, len(b.running))
	for handle, run := range b.running {
		snapshot[handle] = run
	}
	return snapshot
}

// Completed returns the completed-run records in completion order.
func (b *BatchState) Completed() []*model.CompletedRun {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*model.CompletedRun(nil), b.completed...)
}

// Failed returns the failed-run records in failure order.
func (b *BatchState) Failed() []*model.FailedRun {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*model.FailedRun(nil), b.failed...)
}

// Results returns the parsed outputs of completed runs in completion order.
func (b *BatchState) Results() []*model.SimulationResults {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*model.SimulationResults(nil), b.results...)
}

// Envs returns every substrate handle created for this session.
func (b *BatchState) Envs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.envs...)
}

// BaseImage returns the most recently recorded checkpoint image, or "".
func (b *BatchState) BaseImage() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.baseImage
}

// SetBaseImage records a checkpointed base image for future admissions.
func (b *BatchState) SetBaseImage(image string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.baseImage = image
}

// AvgDuration returns the mean duration over completed runs, or 0 when
// none have completed yet.
func (b *BatchState) AvgDuration() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.completed) == 0 {
		return 0
	}
	var sum time.Duration
	for _, c := range b.completed {
		sum += c.Duration
	}
	return sum / time.Duration(len(b.completed))
}

// popQueued removes and returns the head of the queue. Caller must hold mu.
func (b *BatchState) popQueued() *model.RunSpec {
	if len(b.queue) == 0 {
		return nil
	}
	run := b.queue[0]
	b.queue = b.queue[1:]
	return run
}

// markRunning transitions run to RUNNING and records it under handle.
// Caller must hold mu.
func (b *BatchState) markRunning(run *model.RunSpec, handle string, now time.Time) error {
	if !run.Status.CanTransitionTo(model.RunStatusRunning) {
		return &model.InvalidTransitionError{
			Entity: "Run", ID: run.ID,
			From: run.Status.String(), To: model.RunStatusRunning.String(),
		}
	}
	run.Status = model.RunStatusRunning
	run.EnvID = handle
	run.StartTime = &now
	b.running[handle] = run
	b.envs = append(b.envs, handle)
	return nil
}

// markCompleted moves an in-flight run to completed with its parsed result.
// Caller must hold mu.
func (b *BatchState) markCompleted(handle string, results *model.SimulationResults, now time.Time) error {
	run, ok := b.running[handle]
	if !ok {
		return &model.InvalidTransitionError{
			Entity: "Run", ID: handle, From: "?", To: model.RunStatusCompleted.String(),
		}
	}
	run.Status = model.RunStatusCompleted
	run.EndTime = &now
	delete(b.running, handle)

	var duration time.Duration
	if run.StartTime != nil {
		duration = now.Sub(*run.StartTime)
	}
	b.completed = append(b.completed, &model.CompletedRun{
		Run:         run,
		Results:     results,
		Duration:    duration,
		CompletedAt: now,
	})
	b.results = append(b.results, results)
	return nil
}

// markFailed moves a run to failed. The run may be in-flight (handle
// set) or a fresh pop from the queue whose environment never came up.
// Caller must hold mu.
func (b *BatchState) markFailed(run *model.RunSpec, cause string, now time.Time) {
	if run.EnvID != "" {
		delete(b.running, run.EnvID)
	}
	run.Status = model.RunStatusFailed
	run.EndTime = &now
	b.failed = append(b.failed, &model.FailedRun{
		Run:      run,
		Error:    cause,
		FailedAt: now,
	})
}
