package scheduler

import (
	"bytes"
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/me/gosweep/internal/substrate"
	"github.com/me/gosweep/internal/validate"
	"github.com/me/gosweep/pkg/model"
)

// PollerConfig holds the poller intervals.
type PollerConfig struct {
	// PollInterval is how often in-flight runs are checked for results.
	PollInterval time.Duration

	// ReportInterval is how often progress/ETA is logged while runs
	// are in flight.
	ReportInterval time.Duration
}

// DefaultPollerConfig returns the reference intervals.
func DefaultPollerConfig() PollerConfig {
	return PollerConfig{
		PollInterval:   5 * time.Second,
		ReportInterval: 30 * time.Second,
	}
}

// Poller detects run completion by reading each in-flight run's result
// file from its environment every tick, retiring completed and failed
// runs and backfilling freed slots from the queue. It terminates itself
// once the queue and the running set are both empty.
//
// There is no run timeout: a run that never produces its result file
// and never errors occupies its slot indefinitely. Callers needing
// bounded worst-case latency should enforce a deadline at the
// substrate layer.
type Poller struct {
	sched  *Scheduler
	sub    substrate.Substrate
	config PollerConfig
	logger *slog.Logger
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPoller creates a Poller for one scheduler session.
func NewPoller(sched *Scheduler, sub substrate.Substrate, cfg PollerConfig, logger *slog.Logger) *Poller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.ReportInterval <= 0 {
		cfg.ReportInterval = 30 * time.Second
	}
	return &Poller{
		sched:  sched,
		sub:    sub,
		config: cfg,
		logger: logger.With("component", "poller", "session_id", sched.sessionID),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start runs the polling loop. It blocks until the batch drains, ctx is
// cancelled, or Stop is called. The progress reporter runs as a
// sub-task cancelled together with the loop.
func (p *Poller) Start(ctx context.Context) error {
	defer close(p.doneCh)

	reportCtx, cancelReport := context.WithCancel(ctx)
	defer cancelReport()
	go p.report(reportCtx)

	p.logger.Info("poller started", "poll_interval", p.config.PollInterval)
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopping (context cancelled)")
			return ctx.Err()
		case <-p.stopCh:
			p.logger.Info("poller stopping (stop called)")
			return nil
		case <-ticker.C:
			p.Tick(ctx)
			if p.drained() {
				summary := p.sched.State().Summary()
				p.logger.Info("batch complete",
					"completed", summary.Completed,
					"failed", summary.Failed,
					"total", summary.Total,
				)
				return nil
			}
		}
	}
}

// Stop shuts the poller down and waits for the loop to exit.
func (p *Poller) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

// drained reports whether both the queue and the running set are empty.
func (p *Poller) drained() bool {
	summary := p.sched.State().Summary()
	return summary.Queued == 0 && summary.Running == 0
}

// Tick checks every in-flight run once. Each run is handled
// independently: one run's failure never aborts the batch.
func (p *Poller) Tick(ctx context.Context) {
	for handle, run := range p.sched.State().Running() {
		data, err := p.sub.ReadFile(ctx, handle, p.sched.ResultFile())

		switch {
		case err == nil && len(bytes.TrimSpace(data)) == 0:
			// The backend has created the file but not finished
			// writing it. Still in flight.
			continue

		case err == nil:
			p.retireCompleted(ctx, handle, run.ID, data)

		case substrate.IsNotFound(err):
			// No result yet; re-check next tick.
			continue

		default:
			p.retireFailed(ctx, handle, run.ID, err.Error())
		}
	}
}

// retireCompleted parses the result payload, moves the run to completed
// (or to failed on a malformed payload), and backfills the freed slot.
func (p *Poller) retireCompleted(ctx context.Context, handle, runID string, data []byte) {
	now := time.Now().UTC()
	results, err := validate.ParsePayload(data)

	state := p.sched.State()
	state.mu.Lock()
	if err != nil {
		if run, ok := state.running[handle]; ok {
			state.markFailed(run, "malformed result payload: "+err.Error(), now)
		}
		state.mu.Unlock()
		p.logger.Warn("run failed (bad payload)", "run_id", runID, "error", err)
	} else {
		if err := state.markCompleted(handle, results, now); err != nil {
			state.mu.Unlock()
			// A handle with no running run is an invariant violation.
			p.logger.Error("retire completed", "run_id", runID, "error", err)
			return
		}
		state.mu.Unlock()
		p.logger.Info("run completed", "run_id", runID, "env_id", handle)
	}

	p.backfill(ctx)
}

// retireFailed moves the run to failed and backfills the freed slot.
func (p *Poller) retireFailed(ctx context.Context, handle, runID, cause string) {
	now := time.Now().UTC()
	state := p.sched.State()

	state.mu.Lock()
	if run, ok := state.running[handle]; ok {
		state.markFailed(run, cause, now)
	}
	state.mu.Unlock()
	p.logger.Warn("run failed", "run_id", runID, "env_id", handle, "error", cause)

	p.backfill(ctx)
}

// backfill admits and dispatches at most one queued run to reuse a
// freed slot. Failed runs are never retried; the replacement is always
// the next queued combination.
func (p *Poller) backfill(ctx context.Context) {
	run, err := p.sched.Admit(ctx)
	if err != nil || run == nil {
		return
	}
	_ = p.sched.Dispatch(ctx, run)
}

// report logs progress and the ETA on the report interval, for as long
// as the loop is alive.
func (p *Poller) report(ctx context.Context) {
	ticker := time.NewTicker(p.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			summary := p.sched.State().Summary()
			if summary.Running == 0 {
				continue
			}
			attrs := []any{
				"completed", summary.Completed,
				"failed", summary.Failed,
				"running", summary.Running,
				"queued", summary.Queued,
				"progress", humanize.FtoaWithDigits(summary.Percentage(), 1) + "%",
			}
			if eta, ok := computeETA(time.Now().UTC(), summary, p.sched.State().AvgDuration(), p.sched.MaxParallel()); ok {
				attrs = append(attrs, "eta", humanize.Time(eta))
			}
			p.logger.Info("batch progress", attrs...)
		}
	}
}

// computeETA estimates completion as now + ceil(remaining/parallelism)
// rounds of the average completed-run duration. It assumes uniform run
// duration and constant parallelism, so it is an approximation, never a
// guarantee. Returns ok=false until at least one run has completed.
func computeETA(now time.Time, summary model.RunSummary, avgDuration time.Duration, maxParallel int) (time.Time, bool) {
	remaining := summary.Queued + summary.Running
	if remaining == 0 || avgDuration <= 0 || maxParallel <= 0 {
		return time.Time{}, false
	}
	parallelism := maxParallel
	if remaining < parallelism {
		parallelism = remaining
	}
	rounds := (remaining + parallelism - 1) / parallelism
	return now.Add(time.Duration(rounds) * avgDuration), true
}
