// Package session ties one sweep definition to the live objects that
// execute it: the batch state, the scheduler, and the completion
// poller. Sessions are held by an injected SessionStore rather than a
// package-level map so the HTTP surface and the daemon can be tested
// against their own stores.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/me/gosweep/internal/config"
	"github.com/me/gosweep/internal/scheduler"
	"github.com/me/gosweep/internal/substrate"
)

// Session is one live sweep: its definition plus the scheduling
// machinery executing it. The embedded batch state is the single source
// of truth for run status; everything else here is immutable after New.
type Session struct {
	ID         string
	Definition config.SweepDefinition
	State      *scheduler.BatchState
	Scheduler  *scheduler.Scheduler
	Poller     *scheduler.Poller
	CreatedAt  time.Time

	stopOnce sync.Once
}

// New builds a session from a validated sweep definition, expands its
// parameter grid, and enqueues every (combination, replicate) run. The
// poller is constructed but not started; callers launch it when they
// are ready to admit work.
func New(def config.SweepDefinition, modelData []byte, sub substrate.Substrate, pollCfg scheduler.PollerConfig, logger *slog.Logger) *Session {
	id := "sess_" + uuid.NewString()[:8]

	state := scheduler.NewBatchState()
	sched := scheduler.New(id, scheduler.Config{
		ModelPath:   def.ModelPath,
		ModelData:   modelData,
		MaxParallel: def.MaxParallel,
	}, state, sub, logger)

	combinations := scheduler.ExpandCombinations(def.Parameters)
	sched.Enqueue(combinations, def.Replicates)

	return &Session{
		ID:         id,
		Definition: def,
		State:      state,
		Scheduler:  sched,
		Poller:     scheduler.NewPoller(sched, sub, pollCfg, logger),
		CreatedAt:  time.Now().UTC(),
	}
}

// Start fills the admission window and runs the poller until the batch
// drains or ctx is cancelled. Intended to run in its own goroutine.
func (s *Session) Start(ctx context.Context) error {
	s.Scheduler.Fill(ctx)
	return s.Poller.Start(ctx)
}

// Stop interrupts the poller. Safe to call more than once; both the
// session delete handler and daemon shutdown may race to it.
func (s *Session) Stop() {
	s.stopOnce.Do(s.Poller.Stop)
}

// Status reports the session's current progress snapshot.
func (s *Session) Status() scheduler.Status {
	return s.Scheduler.Status()
}
