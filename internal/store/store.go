package store

import (
	"context"

	"github.com/me/gosweep/pkg/model"
)

// Store defines the persistence layer for gosweep entities.
type Store interface {
	// Sweep CRUD
	CreateSweep(ctx context.Context, sw *model.Sweep) error
	GetSweep(ctx context.Context, id string) (*model.Sweep, error)
	ListSweeps(ctx context.Context, opts model.ListOptions) ([]*model.Sweep, int, error)
	UpdateSweep(ctx context.Context, sw *model.Sweep) error
	DeleteSweep(ctx context.Context, id string) error

	// Run operations
	CreateRun(ctx context.Context, run *model.RunSpec) error
	GetRun(ctx context.Context, id string) (*model.RunSpec, error)
	ListRunsBySweep(ctx context.Context, sweepID string) ([]*model.RunSpec, error)
	UpdateRun(ctx context.Context, run *model.RunSpec) error

	// Run outcomes
	SaveCompletion(ctx context.Context, c *model.CompletedRun) error
	SaveFailure(ctx context.Context, f *model.FailedRun) error
	ListCompletions(ctx context.Context, sweepID string) ([]*model.CompletedRun, error)
	ListFailures(ctx context.Context, sweepID string) ([]*model.FailedRun, error)

	// Result history
	AppendHistory(ctx context.Context, entry *model.HistoryEntry) error
	QueryHistory(ctx context.Context, filter model.HistoryFilter) ([]*model.HistoryEntry, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
