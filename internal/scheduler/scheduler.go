package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/me/gosweep/internal/substrate"
	"github.com/me/gosweep/pkg/model"
)

// DefaultResultFile is the well-known path the model backend writes its
// result summary to inside an environment.
const DefaultResultFile = "results.json"

// Config holds per-session scheduler configuration.
type Config struct {
	// ModelPath is the model artifact's path, used for cache keys and
	// the generated run script.
	ModelPath string

	// ModelData is the model artifact's content, staged into fresh
	// environments that were not cloned from a checkpointed base image.
	ModelData []byte

	// MaxParallel bounds the number of concurrently running runs.
	MaxParallel int

	// ResultFile overrides DefaultResultFile when non-empty.
	ResultFile string
}

// Scheduler owns the run queue and lifecycle for one experiment
// session: admission control under MaxParallel, environment setup, and
// dispatch of run scripts into the execution substrate.
type Scheduler struct {
	sessionID string
	config    Config
	state     *BatchState
	sub       substrate.Substrate
	logger    *slog.Logger
}

// New creates a Scheduler for one session.
func New(sessionID string, cfg Config, state *BatchState, sub substrate.Substrate, logger *slog.Logger) *Scheduler {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	if cfg.ResultFile == "" {
		cfg.ResultFile = DefaultResultFile
	}
	return &Scheduler{
		sessionID: sessionID,
		config:    cfg,
		state:     state,
		sub:       sub,
		logger:    logger.With("component", "scheduler", "session_id", sessionID),
	}
}

// State returns the session's batch state.
func (s *Scheduler) State() *BatchState {
	return s.state
}

// MaxParallel returns the admission bound.
func (s *Scheduler) MaxParallel() int {
	return s.config.MaxParallel
}

// ResultFile returns the well-known result path for this session.
func (s *Scheduler) ResultFile() string {
	return s.config.ResultFile
}

// Enqueue creates one QUEUED RunSpec per (combination, replicate) and
// appends them in combination order, replicates contiguous. Identical
// combinations enqueued twice get independent RunSpecs; there is no
// duplicate detection.
func (s *Scheduler) Enqueue(combinations []map[string]any, replicates int) []*model.RunSpec {
	if replicates < 1 {
		replicates = 1
	}
	now := time.Now().UTC()
	runs := make([]*model.RunSpec, 0, len(combinations)*replicates)
	for _, combo := range combinations {
		for rep := 0; rep < replicates; rep++ {
			params := make(map[string]any, len(combo))
			for name, value := range combo {
				params[name] = value
			}
			runs = append(runs, &model.RunSpec{
				ID:             "run_" + uuid.New().String()[:8],
				SessionID:      s.sessionID,
				Parameters:     params,
				ReplicateIndex: rep,
				Status:         model.RunStatusQueued,
				CreatedAt:      now,
			})
		}
	}
	s.state.Push(runs...)
	s.logger.Info("runs enqueued", "combinations", len(combinations), "replicates", replicates, "total", len(runs))
	return runs
}

// Admit starts at most one queued run: if the running set is at
// MaxParallel or the queue is empty it returns (nil, nil). Otherwise it
// pops the queue head, provisions an environment (seeded from the
// session's checkpointed base image when one is recorded), and marks
// the run RUNNING. An environment that cannot be created is terminal
// for that run: it moves straight to failed and is not re-queued.
func (s *Scheduler) Admit(ctx context.Context) (*model.RunSpec, error) {
	s.state.mu.Lock()
	if len(s.state.running) >= s.config.MaxParallel {
		s.state.mu.Unlock()
		return nil, nil
	}
	run := s.state.popQueued()
	if run == nil {
		s.state.mu.Unlock()
		return nil, nil
	}
	seed := s.state.baseImage
	s.state.mu.Unlock()

	handle, err := s.sub.Create(ctx, seed)
	now := time.Now().UTC()

	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if err != nil {
		s.state.markFailed(run, err.Error(), now)
		s.logger.Warn("run failed at admission", "run_id", run.ID, "error", err)
		return nil, fmt.Errorf("admit run %s: %w", run.ID, err)
	}
	if err := s.state.markRunning(run, handle, now); err != nil {
		return nil, err
	}
	s.logger.Debug("run admitted", "run_id", run.ID, "env_id", handle, "replicate", run.ReplicateIndex)
	return run, nil
}

// Dispatch stages the run script (and the model artifact, when the
// environment was not cloned from a base image) and asks the substrate
// to run it. The call is fire-and-forget: completion is observed by the
// poller reading the result file, never synchronously here. A staging
// or run-acceptance failure is terminal for the run.
func (s *Scheduler) Dispatch(ctx context.Context, run *model.RunSpec) error {
	seeded := s.state.BaseImage() != ""

	err := s.stage(ctx, run, seeded)
	if err != nil {
		now := time.Now().UTC()
		s.state.mu.Lock()
		s.state.markFailed(run, err.Error(), now)
		s.state.mu.Unlock()
		s.logger.Warn("run failed at dispatch", "run_id", run.ID, "error", err)
		return fmt.Errorf("dispatch run %s: %w", run.ID, err)
	}

	s.logger.Info("run dispatched", "run_id", run.ID, "env_id", run.EnvID)
	return nil
}

func (s *Scheduler) stage(ctx context.Context, run *model.RunSpec, seeded bool) error {
	modelFile := filepath.Base(s.config.ModelPath)
	if modelFile == "" || modelFile == "." {
		modelFile = "model.mo"
	}

	if !seeded && len(s.config.ModelData) > 0 {
		if err := s.sub.WriteFile(ctx, run.EnvID, modelFile, s.config.ModelData); err != nil {
			return fmt.Errorf("stage model: %w", err)
		}
	}

	params, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	if err := s.sub.WriteFile(ctx, run.EnvID, "params.json", params); err != nil {
		return fmt.Errorf("stage parameters: %w", err)
	}

	script := buildRunScript(modelFile, s.config.ResultFile)
	if err := s.sub.WriteFile(ctx, run.EnvID, "run.sh", []byte(script)); err != nil {
		return fmt.Errorf("stage run script: %w", err)
	}

	if err := s.sub.Run(ctx, run.EnvID, "sh run.sh"); err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// buildRunScript generates the shell script a run executes. The model
// backend is whatever command GOSWEEP_BACKEND names; it reads the
// parameter file and eventually writes the result file.
func buildRunScript(modelFile, resultFile string) string {
	return fmt.Sprintf(`#!/bin/sh
exec "${GOSWEEP_BACKEND:-simrun}" --model %q --parameters params.json --output %q
`, modelFile, resultFile)
}

// Fill admits and dispatches runs until the admission gate closes (the
// running set is full or the queue is empty). Used for initial
// admission; the poller backfills one slot at a time afterwards.
func (s *Scheduler) Fill(ctx context.Context) {
	for {
		run, err := s.Admit(ctx)
		if err != nil {
			continue // the popped run is already in failed; try the next
		}
		if run == nil {
			return
		}
		// Dispatch failures are likewise recorded on the run itself.
		_ = s.Dispatch(ctx, run)
	}
}

// PrepareBase provisions a scratch environment, stages the model
// artifact into it, checkpoints it as a reusable base image, and
// records the image for this session's future admissions. The scratch
// environment is destroyed afterwards; only the image is kept. Calling
// PrepareBase is optional — without it every run pays full setup cost.
func (s *Scheduler) PrepareBase(ctx context.Context) (string, error) {
	handle, err := s.sub.Create(ctx, "")
	if err != nil {
		return "", fmt.Errorf("prepare base: %w", err)
	}
	defer s.sub.Destroy(ctx, handle)

	modelFile := filepath.Base(s.config.ModelPath)
	if len(s.config.ModelData) > 0 {
		if err := s.sub.WriteFile(ctx, handle, modelFile, s.config.ModelData); err != nil {
			return "", fmt.Errorf("prepare base: %w", err)
		}
	}

	image, err := s.sub.Checkpoint(ctx, handle, "base-"+s.sessionID)
	if err != nil {
		return "", fmt.Errorf("prepare base: %w", err)
	}
	s.state.SetBaseImage(image)
	s.logger.Info("base image checkpointed", "image", image)
	return image, nil
}

// Cleanup destroys every environment created for this session and
// returns the destroyed handles. Destroy failures are logged and
// skipped; cleanup is best-effort.
func (s *Scheduler) Cleanup(ctx context.Context) []string {
	destroyed := make([]string, 0)
	for _, handle := range s.state.Envs() {
		if err := s.sub.Destroy(ctx, handle); err != nil {
			s.logger.Warn("destroy environment", "env_id", handle, "error", err)
			continue
		}
		destroyed = append(destroyed, handle)
	}
	s.logger.Info("session cleaned up", "destroyed", len(destroyed))
	return destroyed
}

// Status is the caller-facing batch status report.
type Status struct {
	SessionID  string           `json:"session_id"`
	Phase      model.BatchPhase `json:"phase"`
	Summary    model.RunSummary `json:"summary"`
	Percentage float64          `json:"percentage"`

	// ETA is a best-effort estimate assuming uniform run duration and
	// constant parallelism; it is absent until a run has completed.
	ETA *time.Time `json:"eta,omitempty"`
}

// Status reports the batch's current progress.
func (s *Scheduler) Status() Status {
	summary := s.state.Summary()
	st := Status{
		SessionID:  s.sessionID,
		Phase:      s.state.Phase(),
		Summary:    summary,
		Percentage: summary.Percentage(),
	}
	if eta, ok := computeETA(time.Now().UTC(), summary, s.state.AvgDuration(), s.config.MaxParallel); ok {
		st.ETA = &eta
	}
	return st
}
