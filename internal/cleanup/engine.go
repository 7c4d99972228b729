package cleanup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lineforge/lineforge/pkg/core"
)

// JobStore is the slice of the lineage store the engine needs. The HTTP
// client satisfies it; tests substitute an in-memory store.
type JobStore interface {
	ListJobs(ctx context.Context, namespace string) ([]core.Job, error)
	DeleteJob(ctx context.Context, namespace, name string) error
	ListJobRuns(ctx context.Context, namespace, job string) ([]core.JobRun, error)
	DeleteJobRun(ctx context.Context, namespace, job, runID string) error
}

// Engine drives retention against a job store.
type Engine struct {
	store  JobStore
	logger *slog.Logger
}

// NewEngine creates a cleanup engine.
func NewEngine(store JobStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{store: store, logger: logger}
}

// Plan lists the namespace's jobs and builds a retention plan. The plan is
// a pure function of the listed records, so a dry run and the execution
// that follows it see the same deletions as long as the store is unchanged.
func (e *Engine) Plan(ctx context.Context, namespace string, strategy Strategy, keep int) (*Plan, error) {
	jobs, err := e.store.ListJobs(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("plan cleanup: %w", err)
	}
	plan := BuildPlan(jobs, strategy, keep)
	e.logger.Info("cleanup planned",
		slog.String("namespace", namespace),
		slog.String("strategy", string(strategy)),
		slog.Int("jobs", len(jobs)),
		slog.Int("groups", len(plan.Groups)),
		slog.Int("delete", len(plan.Delete)),
		slog.Int("ambiguous", len(plan.Ambiguous)))
	return plan, nil
}

// Stats lists the namespace's jobs and summarizes duplication.
func (e *Engine) Stats(ctx context.Context, namespace string, strategy Strategy, limit int) (*Stats, error) {
	jobs, err := e.store.ListJobs(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("cleanup stats: %w", err)
	}
	return BuildStats(jobs, strategy, limit), nil
}

// PlanRunPrune builds a run-history retention plan: every job in the
// namespace keeps its keep newest run records, the rest are scheduled for
// removal. keep clamps to 1 so a job never loses its whole history.
func (e *Engine) PlanRunPrune(ctx context.Context, namespace string, keep int) (*RunPrunePlan, error) {
	if keep < 1 {
		keep = 1
	}
	jobs, err := e.store.ListJobs(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("plan run prune: %w", err)
	}

	plan := &RunPrunePlan{Keep: keep}
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		runs, err := e.store.ListJobRuns(ctx, job.Namespace, job.Name)
		if err != nil {
			return nil, fmt.Errorf("plan run prune: %w", err)
		}
		kept, drop := pruneRuns(runs, keep)
		plan.TotalRuns += len(runs)
		plan.KeptRuns += len(kept)
		for _, run := range drop {
			plan.Delete = append(plan.Delete, RunDeletion{
				Namespace: job.Namespace,
				Job:       job.Name,
				Run:       run,
			})
		}
	}
	e.logger.Info("run prune planned",
		slog.String("namespace", namespace),
		slog.Int("jobs", len(jobs)),
		slog.Int("runs", plan.TotalRuns),
		slog.Int("delete", len(plan.Delete)))
	return plan, nil
}

// RunPruneResult reports what ExecuteRunPrune actually did.
type RunPruneResult struct {
	Deleted []RunDeletion
	Failed  []RunDeletion
	Errors  []error
}

// ExecuteRunPrune removes every run record the plan marks, continuing past
// individual failures.
func (e *Engine) ExecuteRunPrune(ctx context.Context, plan *RunPrunePlan) (*RunPruneResult, error) {
	res := &RunPruneResult{}
	for _, rd := range plan.Delete {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.store.DeleteJobRun(ctx, rd.Namespace, rd.Job, rd.Run.ID); err != nil {
			res.Failed = append(res.Failed, rd)
			res.Errors = append(res.Errors, err)
			e.logger.Warn("run deletion failed",
				slog.String("job", rd.Namespace+"::"+rd.Job),
				slog.String("run_id", rd.Run.ID),
				slog.Any("error", err))
			continue
		}
		res.Deleted = append(res.Deleted, rd)
		e.logger.Info("run deleted",
			slog.String("job", rd.Namespace+"::"+rd.Job),
			slog.String("run_id", rd.Run.ID))
	}
	return res, nil
}

// ExecutionResult reports what Execute actually did.
type ExecutionResult struct {
	Deleted []core.Job
	Failed  []core.Job
	Errors  []error
}

// Execute deletes every job the plan marks. A failed deletion is recorded
// and the pass continues; partial progress is not rolled back since every
// individual deletion is idempotent.
func (e *Engine) Execute(ctx context.Context, plan *Plan) (*ExecutionResult, error) {
	res := &ExecutionResult{}
	for _, job := range plan.Delete {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := e.store.DeleteJob(ctx, job.Namespace, job.Name); err != nil {
			res.Failed = append(res.Failed, job)
			res.Errors = append(res.Errors, err)
			e.logger.Warn("job deletion failed",
				slog.String("job", job.Key()),
				slog.Any("error", err))
			continue
		}
		res.Deleted = append(res.Deleted, job)
		e.logger.Info("job deleted", slog.String("job", job.Key()))
	}
	return res, nil
}
