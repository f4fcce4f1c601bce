package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/me/gosweep/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

// --- Sweep CRUD ---

func (s *SQLiteStore) CreateSweep(ctx context.Context, sw *model.Sweep) error {
	s.logger.Debug("sql", "op", "insert", "table", "sweeps", "id", sw.ID)

	tagsJSON, err := json.Marshal(sw.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	// Default phase to PENDING if not set.
	phase := sw.Phase
	if phase == "" {
		phase = model.BatchPhasePending
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sweeps (id, name, model_path, definition, phase, max_parallel, replicates, total_runs, tags, created_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sw.ID, sw.Name, sw.ModelPath, sw.Definition, string(phase),
		sw.MaxParallel, sw.Replicates, sw.TotalRuns, string(tagsJSON),
		sw.CreatedAt.Format(time.RFC3339Nano), formatTimePtr(sw.CompletedAt),
	)
	return err
}

func (s *SQLiteStore) GetSweep(ctx context.Context, id string) (*model.Sweep, error) {
	s.logger.Debug("sql", "op", "select", "table", "sweeps", "id", id)

	var sw model.Sweep
	var phase, tagsJSON, createdAt string
	var completedAt *string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, model_path, definition, phase, max_parallel, replicates, total_runs, tags, created_at, completed_at
		 FROM sweeps WHERE id = ?`, id,
	).Scan(&sw.ID, &sw.Name, &sw.ModelPath, &sw.Definition, &phase,
		&sw.MaxParallel, &sw.Replicates, &sw.TotalRuns, &tagsJSON, &createdAt, &completedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	sw.Phase = model.BatchPhase(phase)
	json.Unmarshal([]byte(tagsJSON), &sw.Tags)
	sw.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sw.CompletedAt = parseTimePtr(completedAt)

	return &sw, nil
}

func (s *SQLiteStore) ListSweeps(ctx context.Context, opts model.ListOptions) ([]*model.Sweep, int, error) {
	s.logger.Debug("sql", "op", "list", "table", "sweeps", "limit", opts.Limit, "offset", opts.Offset)
	opts.Clamp()

	var whereClauses []string
	var countArgs []any
	if opts.Phase != "" {
		whereClauses = append(whereClauses, "phase = ?")
		countArgs = append(countArgs, opts.Phase)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sweeps`+whereSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	listArgs := append(countArgs, opts.Limit, opts.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, model_path, definition, phase, max_parallel, replicates, total_runs, tags, created_at, completed_at
		 FROM sweeps`+whereSQL+` ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		listArgs...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var sweeps []*model.Sweep
	for rows.Next() {
		var sw model.Sweep
		var phase, tagsJSON, createdAt string
		var completedAt *string

		if err := rows.Scan(&sw.ID, &sw.Name, &sw.ModelPath, &sw.Definition, &phase,
			&sw.MaxParallel, &sw.Replicates, &sw.TotalRuns, &tagsJSON, &createdAt, &completedAt); err != nil {
			return nil, 0, err
		}
		sw.Phase = model.BatchPhase(phase)
		json.Unmarshal([]byte(tagsJSON), &sw.Tags)
		sw.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		sw.CompletedAt = parseTimePtr(completedAt)

		sweeps = append(sweeps, &sw)
	}
	return sweeps, total, rows.Err()
}

func (s *SQLiteStore) UpdateSweep(ctx context.Context, sw *model.Sweep) error {
	s.logger.Debug("sql", "op", "update", "table", "sweeps", "id", sw.ID)

	tagsJSON, err := json.Marshal(sw.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE sweeps SET name=?, phase=?, total_runs=?, tags=?, completed_at=? WHERE id=?`,
		sw.Name, string(sw.Phase), sw.TotalRuns, string(tagsJSON),
		formatTimePtr(sw.CompletedAt), sw.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("sweep %s not found", sw.ID)
	}
	return nil
}

func (s *SQLiteStore) DeleteSweep(ctx context.Context, id string) error {
	s.logger.Debug("sql", "op", "delete", "table", "sweeps", "id", id)

	result, err := s.db.ExecContext(ctx, `DELETE FROM sweeps WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("sweep %s not found", id)
	}
	// Runs, results, and history rows are kept; the sweep record is the
	// only thing removed. Callers that want a full purge delete per table.
	return nil
}

// --- Run operations ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.RunSpec) error {
	s.logger.Debug("sql", "op", "insert", "table", "runs", "id", run.ID)

	paramsJSON, err := json.Marshal(run.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, sweep_id, parameters, replicate_index, status, env_id, error, created_at, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', ?, ?, ?)`,
		run.ID, run.SessionID, string(paramsJSON), run.ReplicateIndex,
		string(run.Status), run.EnvID,
		run.CreatedAt.Format(time.RFC3339Nano),
		formatTimePtr(run.StartTime), formatTimePtr(run.EndTime),
	)
	return err
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.RunSpec, error) {
	s.logger.Debug("sql", "op", "select", "table", "runs", "id", id)

	run, _, err := s.scanRun(s.db.QueryRowContext(ctx,
		`SELECT id, sweep_id, parameters, replicate_index, status, env_id, error, created_at, started_at, completed_at
		 FROM runs WHERE id = ?`, id))
	return run, err
}

func (s *SQLiteStore) ListRunsBySweep(ctx context.Context, sweepID string) ([]*model.RunSpec, error) {
	s.logger.Debug("sql", "op", "list", "table", "runs", "sweep_id", sweepID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sweep_id, parameters, replicate_index, status, env_id, error, created_at, started_at, completed_at
		 FROM runs WHERE sweep_id = ? ORDER BY created_at, replicate_index`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*model.RunSpec
	for rows.Next() {
		run, _, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) UpdateRun(ctx context.Context, run *model.RunSpec) error {
	s.logger.Debug("sql", "op", "update", "table", "runs", "id", run.ID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status=?, env_id=?, started_at=?, completed_at=? WHERE id=?`,
		string(run.Status), run.EnvID,
		formatTimePtr(run.StartTime), formatTimePtr(run.EndTime), run.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run %s not found", run.ID)
	}
	return nil
}

// --- Run outcomes ---

// SaveCompletion records the run's terminal state and its parsed result
// payload in one transaction.
func (s *SQLiteStore) SaveCompletion(ctx context.Context, c *model.CompletedRun) error {
	s.logger.Debug("sql", "op", "save_completion", "run_id", c.Run.ID)

	payload, err := json.Marshal(c.Results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE runs SET status=?, env_id=?, started_at=?, completed_at=? WHERE id=?`,
		string(model.RunStatusCompleted), c.Run.EnvID,
		formatTimePtr(c.Run.StartTime), formatTimePtr(c.Run.EndTime), c.Run.ID,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO results (run_id, sweep_id, payload, duration_ns, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		c.Run.ID, c.Run.SessionID, string(payload), int64(c.Duration),
		c.CompletedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLiteStore) SaveFailure(ctx context.Context, f *model.FailedRun) error {
	s.logger.Debug("sql", "op", "save_failure", "run_id", f.Run.ID)

	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status=?, env_id=?, error=?, started_at=?, completed_at=? WHERE id=?`,
		string(model.RunStatusFailed), f.Run.EnvID, f.Error,
		formatTimePtr(f.Run.StartTime), formatTimePtr(f.Run.EndTime), f.Run.ID,
	)
	return err
}

func (s *SQLiteStore) ListCompletions(ctx context.Context, sweepID string) ([]*model.CompletedRun, error) {
	s.logger.Debug("sql", "op", "list_completions", "sweep_id", sweepID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.sweep_id, r.parameters, r.replicate_index, r.status, r.env_id, r.error,
		 r.created_at, r.started_at, r.completed_at, res.payload, res.duration_ns, res.created_at
		 FROM runs r JOIN results res ON res.run_id = r.id
		 WHERE r.sweep_id = ? ORDER BY res.created_at`, sweepID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var completions []*model.CompletedRun
	for rows.Next() {
		var run model.RunSpec
		var paramsJSON, status, errMsg, createdAt string
		var startedAt, completedAt *string
		var payload, resCreatedAt string
		var durationNS int64

		if err := rows.Scan(&run.ID, &run.SessionID, &paramsJSON, &run.ReplicateIndex,
			&status, &run.EnvID, &errMsg, &createdAt, &startedAt, &completedAt,
			&payload, &durationNS, &resCreatedAt); err != nil {
			return nil, err
		}

		run.Status = model.RunStatus(status)
		json.Unmarshal([]byte(paramsJSON), &run.Parameters)
		run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		run.StartTime = parseTimePtr(startedAt)
		run.EndTime = parseTimePtr(completedAt)

		var results model.SimulationResults
		if err := json.Unmarshal([]byte(payload), &results); err != nil {
			return nil, fmt.Errorf("unmarshal results for run %s: %w", run.ID, err)
		}
		at, _ := time.Parse(time.RFC3339Nano, resCreatedAt)

		completions = append(completions, &model.CompletedRun{
			Run:         &run,
			Results:     &results,
			Duration:    time.Duration(durationNS),
			CompletedAt: at,
		})
	}
	return completions, rows.Err()
}

func (s *SQLiteStore) ListFailures(ctx context.Context, sweepID string) ([]*model.FailedRun, error) {
	s.logger.Debug("sql", "op", "list_failures", "sweep_id", sweepID)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sweep_id, parameters, replicate_index, status, env_id, error, created_at, started_at, completed_at
		 FROM runs WHERE sweep_id = ? AND status = ? ORDER BY completed_at`,
		sweepID, string(model.RunStatusFailed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []*model.FailedRun
	for rows.Next() {
		run, errMsg, err := s.scanRun(rows)
		if err != nil {
			return nil, err
		}
		failedAt := run.CreatedAt
		if run.EndTime != nil {
			failedAt = *run.EndTime
		}
		failures = append(failures, &model.FailedRun{
			Run:      run,
			Error:    errMsg,
			FailedAt: failedAt,
		})
	}
	return failures, rows.Err()
}

// --- Result history ---

func (s *SQLiteStore) AppendHistory(ctx context.Context, entry *model.HistoryEntry) error {
	s.logger.Debug("sql", "op", "insert", "table", "history", "key", entry.Key)

	paramsJSON, err := json.Marshal(entry.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	payload := ""
	if entry.Results != nil {
		b, err := json.Marshal(entry.Results)
		if err != nil {
			return fmt.Errorf("marshal results: %w", err)
		}
		payload = string(b)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO history (key, sweep_id, model_path, parameters, tags, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.Key, entry.SweepID, entry.ModelPath, string(paramsJSON),
		string(tagsJSON), payload, entry.CreatedAt.Format(time.RFC3339Nano),
	)
	return err
}

// QueryHistory returns matching entries newest-first. Tag filtering is
// done in Go since tags are stored as a JSON array.
func (s *SQLiteStore) QueryHistory(ctx context.Context, filter model.HistoryFilter) ([]*model.HistoryEntry, error) {
	s.logger.Debug("sql", "op", "query", "table", "history", "model_path", filter.ModelPath)

	var whereClauses []string
	var args []any
	if filter.ModelPath != "" {
		whereClauses = append(whereClauses, "model_path = ?")
		args = append(args, filter.ModelPath)
	}
	if !filter.Since.IsZero() {
		whereClauses = append(whereClauses, "created_at >= ?")
		args = append(args, filter.Since.Format(time.RFC3339Nano))
	}
	if !filter.Until.IsZero() {
		whereClauses = append(whereClauses, "created_at <= ?")
		args = append(args, filter.Until.Format(time.RFC3339Nano))
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, sweep_id, model_path, parameters, tags, payload, created_at
		 FROM history`+whereSQL+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*model.HistoryEntry
	for rows.Next() {
		var entry model.HistoryEntry
		var paramsJSON, tagsJSON, payload, createdAt string

		if err := rows.Scan(&entry.Key, &entry.SweepID, &entry.ModelPath,
			&paramsJSON, &tagsJSON, &payload, &createdAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(paramsJSON), &entry.Parameters)
		json.Unmarshal([]byte(tagsJSON), &entry.Tags)
		if payload != "" {
			var results model.SimulationResults
			if err := json.Unmarshal([]byte(payload), &results); err == nil {
				entry.Results = &results
			}
		}
		entry.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)

		if !hasAllTags(entry.Tags, filter.Tags) {
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// --- scan helpers ---

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanRun(row scanner) (*model.RunSpec, string, error) {
	var run model.RunSpec
	var paramsJSON, status, errMsg, createdAt string
	var startedAt, completedAt *string

	err := row.Scan(
		&run.ID, &run.SessionID, &paramsJSON, &run.ReplicateIndex,
		&status, &run.EnvID, &errMsg,
		&createdAt, &startedAt, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", err
	}

	run.Status = model.RunStatus(status)
	json.Unmarshal([]byte(paramsJSON), &run.Parameters)
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.StartTime = parseTimePtr(startedAt)
	run.EndTime = parseTimePtr(completedAt)

	return &run, errMsg, nil
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339Nano)
	return &s
}

func parseTimePtr(s *string) *time.Time {
	if s == nil {
		return nil
	}
	t, _ := time.Parse(time.RFC3339Nano, *s)
	return &t
}
