package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lineforge/lineforge/internal/testutil"
	"github.com/lineforge/lineforge/pkg/core"
)

// fakeStore is an in-memory JobStore.
type fakeStore struct {
	jobs        []core.Job
	runs        map[string][]core.JobRun // keyed by namespace::job
	deleted     []string
	deletedRuns []string
	failOn      map[string]error
	listErr     error
}

func (f *fakeStore) ListJobs(ctx context.Context, namespace string) ([]core.Job, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.jobs, nil
}

func (f *fakeStore) DeleteJob(ctx context.Context, namespace, name string) error {
	key := namespace + "::" + name
	if err := f.failOn[key]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeStore) ListJobRuns(ctx context.Context, namespace, job string) ([]core.JobRun, error) {
	return f.runs[namespace+"::"+job], nil
}

func (f *fakeStore) DeleteJobRun(ctx context.Context, namespace, job, runID string) error {
	key := namespace + "::" + job + "#" + runID
	if err := f.failOn[key]; err != nil {
		return err
	}
	f.deletedRuns = append(f.deletedRuns, key)
	return nil
}

func engineFixture(t *testing.T) (*Engine, *fakeStore) {
	t.Helper()
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{jobs: []core.Job{
		jobAt("orders_v1", "analytics.orders", t1),
		jobAt("orders_v2", "analytics.orders", t1.Add(time.Hour)),
		jobAt("orders_v3", "analytics.orders", t1.Add(2*time.Hour)),
	}}
	return NewEngine(store, testutil.NewTestLogger(t)), store
}

func TestEnginePlanAndExecute(t *testing.T) {
	engine, store := engineFixture(t)
	ctx := context.Background()

	plan, err := engine.Plan(ctx, "warehouse", StrategyDataset, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Delete) != 2 {
		t.Fatalf("plan.Delete = %v", plan.Delete)
	}

	res, err := engine.Execute(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deleted) != 2 || len(res.Failed) != 0 {
		t.Fatalf("deleted=%v failed=%v", res.Deleted, res.Failed)
	}
	if store.deleted[0] != "warehouse::orders_v2" || store.deleted[1] != "warehouse::orders_v1" {
		t.Errorf("deleted order = %v", store.deleted)
	}
}

func TestEngineExecuteContinuesPastFailures(t *testing.T) {
	engine, store := engineFixture(t)
	store.failOn = map[string]error{
		"warehouse::orders_v2": errors.New("boom"),
	}
	ctx := context.Background()

	plan, err := engine.Plan(ctx, "warehouse", StrategyDataset, 1)
	if err != nil {
		t.Fatal(err)
	}

	res, err := engine.Execute(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Failed) != 1 || res.Failed[0].Name != "orders_v2" {
		t.Fatalf("failed = %v", res.Failed)
	}
	if len(res.Deleted) != 1 || res.Deleted[0].Name != "orders_v1" {
		t.Fatalf("deleted = %v, the pass must continue past a failure", res.Deleted)
	}
	if len(res.Errors) != 1 {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestEngineExecuteStopsOnCancel(t *testing.T) {
	engine, store := engineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	plan, err := engine.Plan(ctx, "warehouse", StrategyDataset, 1)
	if err != nil {
		t.Fatal(err)
	}
	cancel()

	_, err = engine.Execute(ctx, plan)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if len(store.deleted) != 0 {
		t.Errorf("deleted = %v, want none after cancel", store.deleted)
	}
}

func TestEnginePruneRuns(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		jobs: []core.Job{
			{Namespace: "warehouse", Name: "orders"},
			{Namespace: "warehouse", Name: "payments"},
		},
		runs: map[string][]core.JobRun{
			"warehouse::orders": {
				{ID: "r1", CreatedAt: t1},
				{ID: "r3", CreatedAt: t1.Add(2 * time.Hour)},
				{ID: "r2", CreatedAt: t1.Add(time.Hour)},
			},
			"warehouse::payments": {
				{ID: "p1", CreatedAt: t1},
			},
		},
	}
	engine := NewEngine(store, testutil.NewTestLogger(t))
	ctx := context.Background()

	plan, err := engine.PlanRunPrune(ctx, "warehouse", 2)
	if err != nil {
		t.Fatal(err)
	}
	if plan.TotalRuns != 4 || plan.KeptRuns != 3 {
		t.Fatalf("TotalRuns=%d KeptRuns=%d", plan.TotalRuns, plan.KeptRuns)
	}
	if len(plan.Delete) != 1 || plan.Delete[0].Run.ID != "r1" {
		t.Fatalf("delete = %v, want oldest run r1", plan.Delete)
	}

	res, err := engine.ExecuteRunPrune(ctx, plan)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Deleted) != 1 || store.deletedRuns[0] != "warehouse::orders#r1" {
		t.Fatalf("deleted = %v", store.deletedRuns)
	}
}

func TestEnginePruneRunsClampsKeep(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{
		jobs: []core.Job{{Namespace: "warehouse", Name: "orders"}},
		runs: map[string][]core.JobRun{
			"warehouse::orders": {
				{ID: "r1", CreatedAt: t1},
				{ID: "r2", CreatedAt: t1.Add(time.Hour)},
			},
		},
	}
	engine := NewEngine(store, testutil.NewTestLogger(t))

	plan, err := engine.PlanRunPrune(context.Background(), "warehouse", 0)
	if err != nil {
		t.Fatal(err)
	}
	if plan.Keep != 1 {
		t.Errorf("Keep = %d, want clamp to 1", plan.Keep)
	}
	if plan.KeptRuns != 1 || len(plan.Delete) != 1 {
		t.Errorf("kept=%d delete=%v, a job must keep at least one run", plan.KeptRuns, plan.Delete)
	}
}

func TestEnginePlanPropagatesListError(t *testing.T) {
	engine, store := engineFixture(t)
	store.listErr = errors.New("store down")

	if _, err := engine.Plan(context.Background(), "warehouse", StrategyDataset, 1); err == nil {
		t.Fatal("expected error")
	}
	if _, err := engine.Stats(context.Background(), "warehouse", StrategyDataset, 0); err == nil {
		t.Fatal("expected error")
	}
}
