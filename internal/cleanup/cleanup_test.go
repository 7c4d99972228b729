package cleanup

import (
	"testing"
	"time"

	"github.com/lineforge/lineforge/pkg/core"
)

func TestNormalizeJobName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"etl_customers", "etl_customers"},
		{"etl_customers_v1", "etl_customers"},
		{"etl_customers_v12", "etl_customers"},
		{"etl_customers_jr_9f3aabbc", "etl_customers"},
		{"etl_customers_20240115123000", "etl_customers"},
		{"etl_customers20240115", "etl_customers"},
		// Stacked suffixes strip until stable.
		{"etl_customers_v2_jr_0abc12", "etl_customers"},
		{"etl_customers_20240115_v3", "etl_customers"},
		// Short numbers are part of the name, not a timestamp.
		{"etl_customers_2024", "etl_customers_2024"},
		{"model_v2x", "model_v2x"},
		// A name that is nothing but suffix stays as-is.
		{"_jr_deadbeef", "_jr_deadbeef"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeJobName(tt.name); got != tt.want {
			t.Errorf("NormalizeJobName(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseStrategy(t *testing.T) {
	if s, err := ParseStrategy("Dataset"); err != nil || s != StrategyDataset {
		t.Errorf("ParseStrategy(Dataset) = %v, %v", s, err)
	}
	if s, err := ParseStrategy("node"); err != nil || s != StrategyNode {
		t.Errorf("ParseStrategy(node) = %v, %v", s, err)
	}
	if _, err := ParseStrategy("fuzzy"); err == nil {
		t.Error("ParseStrategy(fuzzy) should fail")
	}
}

func jobAt(name string, out string, ended time.Time) core.Job {
	j := core.Job{Namespace: "warehouse", Name: name, EndedAt: ended}
	if out != "" {
		j.Outputs = []core.DatasetID{{Namespace: "warehouse", Name: out}}
	}
	return j
}

func TestGroupJobsByDataset(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs := []core.Job{
		jobAt("orders_v1", "analytics.orders", t1),
		jobAt("orders_v2", "analytics.orders", t1.Add(time.Hour)),
		jobAt("payments", "analytics.payments", t1),
	}

	groups, ambiguous := GroupJobs(jobs, StrategyDataset)
	if len(ambiguous) != 0 {
		t.Fatalf("ambiguous = %v", ambiguous)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	// Groups sorted by key.
	if groups[0].Key != "warehouse::analytics.orders" {
		t.Errorf("groups[0].Key = %q", groups[0].Key)
	}
	// Newest first within the group.
	if groups[0].Jobs[0].Name != "orders_v2" {
		t.Errorf("newest = %q, want orders_v2", groups[0].Jobs[0].Name)
	}
}

func TestGroupJobsByNode(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs := []core.Job{
		jobAt("etl_customers_v1", "a", t1),
		jobAt("etl_customers_v2", "b", t1.Add(time.Hour)),
		jobAt("etl_orders", "c", t1),
	}

	groups, _ := GroupJobs(jobs, StrategyNode)
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
	if groups[0].Key != "warehouse::etl_customers" {
		t.Errorf("groups[0].Key = %q", groups[0].Key)
	}
	if len(groups[0].Jobs) != 2 {
		t.Errorf("etl_customers group has %d jobs, want 2", len(groups[0].Jobs))
	}
}

func TestGroupJobsMultiOutputIsAmbiguous(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	multi := core.Job{
		Namespace: "warehouse",
		Name:      "wide_job",
		EndedAt:   t1,
		Outputs: []core.DatasetID{
			{Namespace: "warehouse", Name: "analytics.orders"},
			{Namespace: "warehouse", Name: "analytics.payments"},
		},
	}
	jobs := []core.Job{
		multi,
		jobAt("orders", "analytics.orders", t1.Add(time.Hour)),
	}

	groups, ambiguous := GroupJobs(jobs, StrategyDataset)
	if len(ambiguous) != 1 || ambiguous[0].Name != "wide_job" {
		t.Fatalf("ambiguous = %v", ambiguous)
	}
	for _, g := range groups {
		for _, j := range g.Jobs {
			if j.Name == "wide_job" {
				t.Errorf("ambiguous job leaked into group %q", g.Key)
			}
		}
	}
}

func TestGroupJobsNoOutputsFallsBackToInputs(t *testing.T) {
	j := core.Job{
		Namespace: "warehouse",
		Name:      "probe",
		Inputs:    []core.DatasetID{{Namespace: "warehouse", Name: "raw.orders"}},
	}
	groups, _ := GroupJobs([]core.Job{j}, StrategyDataset)
	if len(groups) != 1 || groups[0].Key != "warehouse::raw.orders" {
		t.Fatalf("groups = %v", groups)
	}

	bare := core.Job{Namespace: "warehouse", Name: "island"}
	groups, _ = GroupJobs([]core.Job{bare}, StrategyDataset)
	if len(groups) != 1 || groups[0].Key != "job::warehouse::island" {
		t.Fatalf("groups = %v", groups)
	}
}

func TestBuildPlanKeepsNewest(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	t3 := t2.Add(time.Hour)
	jobs := []core.Job{
		jobAt("orders_v1", "analytics.orders", t1),
		jobAt("orders_v3", "analytics.orders", t3),
		jobAt("orders_v2", "analytics.orders", t2),
	}

	plan := BuildPlan(jobs, StrategyDataset, 1)

	if len(plan.Kept) != 1 || plan.Kept[0].Name != "orders_v3" {
		t.Fatalf("kept = %v, want only orders_v3", plan.Kept)
	}
	if len(plan.Delete) != 2 {
		t.Fatalf("delete = %v", plan.Delete)
	}
	// Deletions ordered newest first after the kept prefix.
	if plan.Delete[0].Name != "orders_v2" || plan.Delete[1].Name != "orders_v1" {
		t.Errorf("delete order = %v", plan.Delete)
	}
}

func TestBuildPlanClampsKeep(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs := []core.Job{
		jobAt("orders_v1", "analytics.orders", t1),
		jobAt("orders_v2", "analytics.orders", t1.Add(time.Hour)),
	}

	plan := BuildPlan(jobs, StrategyDataset, 0)
	if plan.Keep != 1 {
		t.Errorf("Keep = %d, want clamp to 1", plan.Keep)
	}
	if len(plan.Kept) != 1 {
		t.Errorf("kept = %v, a plan must never delete every record", plan.Kept)
	}
}

func TestBuildPlanRunIDTieBreak(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := jobAt("orders_a", "analytics.orders", t1)
	a.RunID = "aaa"
	b := jobAt("orders_b", "analytics.orders", t1)
	b.RunID = "bbb"

	plan := BuildPlan([]core.Job{a, b}, StrategyDataset, 1)
	if plan.Kept[0].Name != "orders_b" {
		t.Errorf("kept = %q, want greatest run id on equal times", plan.Kept[0].Name)
	}
}

func TestBuildPlanIsDeterministic(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs := []core.Job{
		jobAt("orders_v2", "analytics.orders", t1.Add(time.Hour)),
		jobAt("payments_v1", "analytics.payments", t1),
		jobAt("orders_v1", "analytics.orders", t1),
		jobAt("payments_v2", "analytics.payments", t1.Add(time.Hour)),
	}
	shuffled := []core.Job{jobs[3], jobs[0], jobs[2], jobs[1]}

	p1 := BuildPlan(jobs, StrategyDataset, 1)
	p2 := BuildPlan(shuffled, StrategyDataset, 1)

	if len(p1.Delete) != len(p2.Delete) {
		t.Fatalf("plans differ in size: %d vs %d", len(p1.Delete), len(p2.Delete))
	}
	for i := range p1.Delete {
		if p1.Delete[i].Key() != p2.Delete[i].Key() {
			t.Errorf("delete[%d]: %q vs %q", i, p1.Delete[i].Key(), p2.Delete[i].Key())
		}
	}
}

func TestPruneRuns(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	runs := []core.JobRun{
		{ID: "r2", CreatedAt: t1.Add(time.Hour)},
		{ID: "r1", CreatedAt: t1},
		{ID: "r3", CreatedAt: t1.Add(2 * time.Hour)},
	}

	kept, drop := pruneRuns(runs, 2)
	if len(kept) != 2 || kept[0].ID != "r3" || kept[1].ID != "r2" {
		t.Fatalf("kept = %v", kept)
	}
	if len(drop) != 1 || drop[0].ID != "r1" {
		t.Fatalf("drop = %v", drop)
	}

	// Exact timestamp ties break on the greatest run id.
	tied := []core.JobRun{
		{ID: "aaa", CreatedAt: t1},
		{ID: "bbb", CreatedAt: t1},
	}
	kept, _ = pruneRuns(tied, 1)
	if kept[0].ID != "bbb" {
		t.Errorf("kept = %q, want greatest run id", kept[0].ID)
	}

	// Fewer runs than the keep count drops nothing.
	kept, drop = pruneRuns(tied, 5)
	if len(kept) != 2 || drop != nil {
		t.Errorf("kept=%v drop=%v", kept, drop)
	}
}

func TestBuildStats(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jobs := []core.Job{
		jobAt("orders_v1", "analytics.orders", t1),
		jobAt("orders_v2", "analytics.orders", t1),
		jobAt("orders_v3", "analytics.orders", t1),
		jobAt("payments_v1", "analytics.payments", t1),
		jobAt("payments_v2", "analytics.payments", t1),
		jobAt("lonely", "analytics.lonely", t1),
	}

	st := BuildStats(jobs, StrategyDataset, 1)

	if st.TotalJobs != 6 || st.Groups != 3 {
		t.Errorf("TotalJobs=%d Groups=%d", st.TotalJobs, st.Groups)
	}
	if st.DuplicateGroups != 2 || st.Duplicates != 3 {
		t.Errorf("DuplicateGroups=%d Duplicates=%d", st.DuplicateGroups, st.Duplicates)
	}
	if len(st.TopGroups) != 1 {
		t.Fatalf("TopGroups = %v, want capped at 1", st.TopGroups)
	}
	if st.TopGroups[0].Key != "warehouse::analytics.orders" {
		t.Errorf("biggest group = %q", st.TopGroups[0].Key)
	}
}
