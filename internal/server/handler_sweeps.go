package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/gosweep/internal/cache"
	"github.com/me/gosweep/internal/config"
	"github.com/me/gosweep/internal/scheduler"
	"github.com/me/gosweep/internal/session"
	"github.com/me/gosweep/pkg/model"
	"gopkg.in/yaml.v3"
)

// createSweepRequest is the POST /sweeps body. ModelData carries the
// model artifact inline; when absent the daemon reads Model from its
// own filesystem.
type createSweepRequest struct {
	Name        string                 `json:"name"`
	Model       string                 `json:"model"`
	ModelData   string                 `json:"model_data"`
	Parameters  []config.ParameterAxis `json:"parameters"`
	Replicates  int                    `json:"replicates"`
	MaxParallel int                    `json:"max_parallel"`
	Tags        []string               `json:"tags"`
}

type sweepResponse struct {
	Sweep  *model.Sweep      `json:"sweep"`
	Status *scheduler.Status `json:"status,omitempty"`
}

func (s *Server) handleCreateSweep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	var req createSweepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, reqID, http.StatusBadRequest, &model.APIError{
			Code:    model.ErrValidation,
			Message: "Invalid JSON body: " + err.Error(),
		})
		return
	}

	def := config.SweepDefinition{
		Name:        req.Name,
		ModelPath:   req.Model,
		Parameters:  req.Parameters,
		Replicates:  req.Replicates,
		MaxParallel: req.MaxParallel,
		Tags:        req.Tags,
	}
	if err := def.Validate(); err != nil {
		respondError(w, reqID, http.StatusBadRequest,
			model.NewValidationError(err.Error()))
		return
	}

	modelData := []byte(req.ModelData)
	if len(modelData) == 0 {
		data, err := os.ReadFile(def.ModelPath)
		if err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				model.NewValidationError("model artifact unavailable: "+err.Error(),
					model.FieldError{Field: "model", Message: "provide model_data inline or a path readable by the daemon"}))
			return
		}
		modelData = data
	}

	sess := session.New(def, modelData, s.sub, scheduler.PollerConfig{
		PollInterval:   s.config.PollInterval,
		ReportInterval: s.config.ReportInterval,
	}, s.logger)

	sweep := &model.Sweep{
		ID:          sess.ID,
		Name:        def.Name,
		ModelPath:   def.ModelPath,
		Definition:  marshalDefinition(def),
		Phase:       model.BatchPhasePending,
		MaxParallel: def.MaxParallel,
		Replicates:  def.Replicates,
		TotalRuns:   def.TotalRuns(),
		Tags:        def.Tags,
		CreatedAt:   sess.CreatedAt,
	}
	if err := s.store.CreateSweep(r.Context(), sweep); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	for _, run := range sess.State.Queued() {
		if err := s.store.CreateRun(r.Context(), run); err != nil {
			respondError(w, reqID, http.StatusInternalServerError,
				&model.APIError{Code: model.ErrInternal, Message: err.Error()})
			return
		}
	}

	s.sessions.Put(sess)
	go s.runSession(sess, sweep)

	s.logger.Info("sweep created", "id", sess.ID, "name", def.Name, "total_runs", sweep.TotalRuns)

	status := sess.Status()
	respondCreated(w, reqID, sweepResponse{Sweep: sweep, Status: &status})
}

// runSession drives one sweep to completion and persists its outcomes.
// Runs in its own goroutine per sweep.
func (s *Server) runSession(sess *session.Session, sweep *model.Sweep) {
	if err := sess.Start(s.runCtx); err != nil && err != context.Canceled {
		s.logger.Error("session stopped", "id", sess.ID, "error", err)
	}
	s.finalizeSession(sess, sweep)
}

// finalizeSession writes the session's terminal state to the store and
// mirrors completed results into the cache and history. Store writes
// use a fresh context: the run context may already be cancelled.
func (s *Server) finalizeSession(sess *session.Session, sweep *model.Sweep) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, c := range sess.State.Completed() {
		if err := s.store.SaveCompletion(ctx, c); err != nil {
			s.logger.Error("persist completion", "run_id", c.Run.ID, "error", err)
		}

		key := cache.DeriveKey(sweep.ModelPath, c.Run.Parameters)
		meta := cache.Metadata{
			ModelPath:  sweep.ModelPath,
			Parameters: c.Run.Parameters,
			Timestamp:  c.CompletedAt,
			Tags:       sweep.Tags,
		}
		if err := s.cache.Put(key, c.Results, meta); err != nil {
			s.logger.Warn("cache result", "run_id", c.Run.ID, "error", err)
		}
		if err := s.store.AppendHistory(ctx, &model.HistoryEntry{
			Key:        key,
			SweepID:    sweep.ID,
			ModelPath:  sweep.ModelPath,
			Parameters: c.Run.Parameters,
			Tags:       sweep.Tags,
			Results:    c.Results,
			CreatedAt:  c.CompletedAt,
		}); err != nil {
			s.logger.Error("persist history", "run_id", c.Run.ID, "error", err)
		}
	}
	for _, f := range sess.State.Failed() {
		if err := s.store.SaveFailure(ctx, f); err != nil {
			s.logger.Error("persist failure", "run_id", f.Run.ID, "error", err)
		}
	}

	// Runs still in flight were interrupted (shutdown or stop); record
	// their admitted state so the store reflects the env handle and
	// start time instead of the submit-time QUEUED row.
	for _, run := range sess.State.Running() {
		if err := s.store.UpdateRun(ctx, run); err != nil {
			s.logger.Error("persist interrupted run", "run_id", run.ID, "error", err)
		}
	}

	now := time.Now().UTC()
	sweep.Phase = sess.State.Phase()
	if sweep.Phase.IsTerminal() {
		sweep.CompletedAt = &now
	}
	if err := s.store.UpdateSweep(ctx, sweep); err != nil {
		s.logger.Error("persist sweep", "id", sweep.ID, "error", err)
	}

	summary := sess.State.Summary()
	s.logger.Info("sweep finalized",
		"id", sweep.ID,
		"phase", sweep.Phase,
		"completed", summary.Completed,
		"failed", summary.Failed,
	)
}

func (s *Server) handleListSweeps(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())

	opts := model.DefaultListOptions()
	if phase := r.URL.Query().Get("phase"); phase != "" {
		opts.Phase = phase
	}

	sweeps, total, err := s.store.ListSweeps(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	respondList(w, reqID, sweeps, &model.Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

func (s *Server) handleGetSweep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	sweep, err := s.store.GetSweep(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if sweep == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("sweep", id))
		return
	}

	resp := sweepResponse{Sweep: sweep}
	if sess, ok := s.sessions.Get(id); ok {
		// Live sessions carry fresher phase/progress than the store.
		status := sess.Status()
		resp.Status = &status
		resp.Sweep.Phase = status.Phase
	}
	respondOK(w, reqID, resp)
}

func (s *Server) handleDeleteSweep(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	destroyed := []string{}
	if sess, ok := s.sessions.Get(id); ok {
		sess.Stop()
		destroyed = sess.Scheduler.Cleanup(r.Context())
		s.sessions.Delete(id)
	} else {
		sweep, err := s.store.GetSweep(r.Context(), id)
		if err != nil {
			respondError(w, reqID, http.StatusInternalServerError,
				&model.APIError{Code: model.ErrInternal, Message: err.Error()})
			return
		}
		if sweep == nil {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("sweep", id))
			return
		}
	}

	if err := s.store.DeleteSweep(r.Context(), id); err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}

	s.logger.Info("sweep deleted", "id", id, "envs_destroyed", len(destroyed))
	respondOK(w, reqID, map[string]any{
		"id":             id,
		"envs_destroyed": destroyed,
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	// Live sessions are authoritative while the batch is in flight; the
	// store only catches up at finalize.
	if sess, ok := s.sessions.Get(id); ok {
		respondOK(w, reqID, liveRuns(sess))
		return
	}

	runs, err := s.store.ListRunsBySweep(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if len(runs) == 0 {
		if sweep, _ := s.store.GetSweep(r.Context(), id); sweep == nil {
			respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("sweep", id))
			return
		}
	}
	respondOK(w, reqID, runs)
}

// liveRuns flattens a session's batch containers into one run list.
func liveRuns(sess *session.Session) []*model.RunSpec {
	runs := sess.State.Queued()
	for _, run := range sess.State.Running() {
		runs = append(runs, run)
	}
	for _, c := range sess.State.Completed() {
		runs = append(runs, c.Run)
	}
	for _, f := range sess.State.Failed() {
		runs = append(runs, f.Run)
	}
	return runs
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")
	runID := chi.URLParam(r, "runID")

	if sess, ok := s.sessions.Get(id); ok {
		for _, run := range liveRuns(sess) {
			if run.ID == runID {
				respondOK(w, reqID, run)
				return
			}
		}
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", runID))
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if run == nil || run.SessionID != id {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("run", runID))
		return
	}
	respondOK(w, reqID, run)
}

func (s *Server) handleListFailures(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	if sess, ok := s.sessions.Get(id); ok {
		respondOK(w, reqID, sess.State.Failed())
		return
	}

	sweep, err := s.store.GetSweep(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	if sweep == nil {
		respondError(w, reqID, http.StatusNotFound, model.NewNotFoundError("sweep", id))
		return
	}

	failures, err := s.store.ListFailures(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&model.APIError{Code: model.ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, failures)
}

func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	id := chi.URLParam(r, "id")

	results, apiErr := s.lookupResults(r.Context(), id)
	if apiErr != nil {
		status := http.StatusInternalServerError
		if apiErr.Code == model.ErrNotFound {
			status = http.StatusNotFound
		}
		respondError(w, reqID, status, apiErr)
		return
	}
	respondOK(w, reqID, results)
}

// lookupResults returns the sweep's completed results in completion
// order, preferring the live session over the store.
func (s *Server) lookupResults(ctx context.Context, sweepID string) ([]*model.SimulationResults, *model.APIError) {
	if sess, ok := s.sessions.Get(sweepID); ok {
		return sess.State.Results(), nil
	}

	sweep, err := s.store.GetSweep(ctx, sweepID)
	if err != nil {
		return nil, &model.APIError{Code: model.ErrInternal, Message: err.Error()}
	}
	if sweep == nil {
		return nil, model.NewNotFoundError("sweep", sweepID)
	}

	completions, err := s.store.ListCompletions(ctx, sweepID)
	if err != nil {
		return nil, &model.APIError{Code: model.ErrInternal, Message: err.Error()}
	}
	results := make([]*model.SimulationResults, 0, len(completions))
	for _, c := range completions {
		results = append(results, c.Results)
	}
	return results, nil
}

func marshalDefinition(def config.SweepDefinition) string {
	raw, err := yaml.Marshal(def)
	if err != nil {
		return ""
	}
	return string(raw)
}
