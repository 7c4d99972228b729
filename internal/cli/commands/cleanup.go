package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lineforge/lineforge/internal/cleanup"
	"github.com/lineforge/lineforge/internal/cli/config"
)

// CleanupOptions holds options for the cleanup command.
type CleanupOptions struct {
	Keep      int
	Strategy  string
	Stats     bool
	Execute   bool
	Limit     int
	PruneRuns bool
	KeepRuns  int
}

// NewCleanupCommand creates the cleanup command.
func NewCleanupCommand() *cobra.Command {
	opts := &CleanupOptions{}

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Prune duplicate job records from the lineage store",
		Long: `Group the namespace's job records into duplicates and delete all but the
newest of each group.

Without --execute the command only prints the plan. Jobs that fall into
more than one group are never deleted.`,
		Example: `  # Show what would be deleted, keeping the newest record per dataset
  lineforge cleanup

  # Group by normalized job name and keep the two newest
  lineforge cleanup --strategy node --keep 2

  # Summarize duplication without planning anything
  lineforge cleanup --stats

  # Prune run history instead, keeping the five newest runs per job
  lineforge cleanup --prune-runs --keep-runs 5

  # Actually delete
  lineforge cleanup --execute`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCleanup(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Keep, "keep", 1, "Records to keep per duplicate group")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", string(cleanup.StrategyDataset), "Grouping strategy (dataset|node)")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "Only summarize duplication")
	cmd.Flags().BoolVar(&opts.Execute, "execute", false, "Perform the deletions")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "Largest groups to show in stats output")
	cmd.Flags().BoolVar(&opts.PruneRuns, "prune-runs", false, "Prune per-job run history instead of duplicate jobs")
	cmd.Flags().IntVar(&opts.KeepRuns, "keep-runs", 5, "Run records to keep per job with --prune-runs")

	return cmd
}

func runCleanup(cmd *cobra.Command, opts *CleanupOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	out := cmd.OutOrStdout()

	strategy, err := cleanup.ParseStrategy(opts.Strategy)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	engine := cleanup.NewEngine(client, logger)

	if opts.PruneRuns {
		return runPruneRuns(cmd, engine, cfg.Namespace, opts)
	}

	if opts.Stats {
		stats, err := engine.Stats(cmd.Context(), cfg.Namespace, strategy, opts.Limit)
		if err != nil {
			return err
		}
		return renderStats(cmd, cfg.Output, stats)
	}

	plan, err := engine.Plan(cmd.Context(), cfg.Namespace, strategy, opts.Keep)
	if err != nil {
		return err
	}

	if cfg.Output == "json" || cfg.Output == "yaml" {
		if err := renderStructured(out, cfg.Output, planView(plan)); err != nil {
			return err
		}
	} else {
		renderPlan(cmd, plan)
	}

	if !opts.Execute {
		if len(plan.Delete) > 0 {
			fmt.Fprintln(out, "\nDry run. Re-run with --execute to delete.")
		}
		return nil
	}

	res, err := engine.Execute(cmd.Context(), plan)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d jobs deleted, %d failed\n", len(res.Deleted), len(res.Failed))
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d job deletions failed", len(res.Failed))
	}
	return nil
}

func runPruneRuns(cmd *cobra.Command, engine *cleanup.Engine, namespace string, opts *CleanupOptions) error {
	cfg := getConfig()
	out := cmd.OutOrStdout()

	plan, err := engine.PlanRunPrune(cmd.Context(), namespace, opts.KeepRuns)
	if err != nil {
		return err
	}

	if cfg.Output == "json" || cfg.Output == "yaml" {
		if err := renderStructured(out, cfg.Output, runPruneView(plan)); err != nil {
			return err
		}
	} else {
		renderRunPrune(cmd, plan)
	}

	if !opts.Execute {
		if len(plan.Delete) > 0 {
			fmt.Fprintln(out, "\nDry run. Re-run with --execute to delete.")
		}
		return nil
	}

	res, err := engine.ExecuteRunPrune(cmd.Context(), plan)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n%d runs deleted, %d failed\n", len(res.Deleted), len(res.Failed))
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d run deletions failed", len(res.Failed))
	}
	return nil
}

// runPruneRow is the serializable view of one planned run deletion.
type runPruneRow struct {
	Job       string `json:"job" yaml:"job"`
	RunID     string `json:"runId" yaml:"runId"`
	CreatedAt string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
}

func runPruneView(plan *cleanup.RunPrunePlan) []runPruneRow {
	var rows []runPruneRow
	for _, rd := range plan.Delete {
		row := runPruneRow{Job: rd.Namespace + "::" + rd.Job, RunID: rd.Run.ID}
		if !rd.Run.RankTime().IsZero() {
			row.CreatedAt = rd.Run.RankTime().Format("2006-01-02 15:04:05")
		}
		rows = append(rows, row)
	}
	return rows
}

func renderRunPrune(cmd *cobra.Command, plan *cleanup.RunPrunePlan) {
	out := cmd.OutOrStdout()

	if len(plan.Delete) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Job", "Run", "Created", "Action"})
		for _, rd := range plan.Delete {
			created := ""
			if !rd.Run.RankTime().IsZero() {
				created = rd.Run.RankTime().Format("2006-01-02 15:04:05")
			}
			t.AppendRow(table.Row{rd.Namespace + "::" + rd.Job, rd.Run.ID, created, "delete"})
		}
		t.Render()
	}
	fmt.Fprintf(out, "\n%d runs total, %d kept, %d to delete\n",
		plan.TotalRuns, plan.KeptRuns, len(plan.Delete))
}

// planRow is the serializable view of a planned deletion or retention.
type planRow struct {
	Group  string `json:"group" yaml:"group"`
	Job    string `json:"job" yaml:"job"`
	Action string `json:"action" yaml:"action"`
}

func planView(plan *cleanup.Plan) []planRow {
	var rows []planRow
	for _, g := range plan.Groups {
		for i, job := range g.Jobs {
			action := "keep"
			if i >= plan.Keep {
				action = "delete"
			}
			rows = append(rows, planRow{Group: g.Key, Job: job.Key(), Action: action})
		}
	}
	for _, job := range plan.Ambiguous {
		rows = append(rows, planRow{Group: "(multiple)", Job: job.Key(), Action: "skip"})
	}
	return rows
}

func renderPlan(cmd *cobra.Command, plan *cleanup.Plan) {
	out := cmd.OutOrStdout()

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Group", "Job", "Last Activity", "Action"})
	for _, g := range plan.Groups {
		if len(g.Jobs) <= plan.Keep {
			continue
		}
		for i, job := range g.Jobs {
			action := "keep"
			if i >= plan.Keep {
				action = "delete"
			}
			t.AppendRow(table.Row{g.Key, job.Name, job.RankTime().Format("2006-01-02 15:04:05"), action})
		}
		t.AppendSeparator()
	}
	t.Render()

	for _, job := range plan.Ambiguous {
		fmt.Fprintf(out, "skipping %s: belongs to multiple groups\n", job.Key())
	}
	fmt.Fprintf(out, "\n%d groups, %d jobs kept, %d to delete\n",
		len(plan.Groups), len(plan.Kept), len(plan.Delete))
}

// statsView is the serializable stats payload.
type statsView struct {
	TotalJobs       int        `json:"totalJobs" yaml:"totalJobs"`
	Groups          int        `json:"groups" yaml:"groups"`
	DuplicateGroups int        `json:"duplicateGroups" yaml:"duplicateGroups"`
	Duplicates      int        `json:"duplicates" yaml:"duplicates"`
	Ambiguous       int        `json:"ambiguous" yaml:"ambiguous"`
	TopGroups       []groupRow `json:"topGroups,omitempty" yaml:"topGroups,omitempty"`
}

type groupRow struct {
	Key  string `json:"key" yaml:"key"`
	Jobs int    `json:"jobs" yaml:"jobs"`
}

func renderStats(cmd *cobra.Command, format string, stats *cleanup.Stats) error {
	out := cmd.OutOrStdout()

	if format == "json" || format == "yaml" {
		view := statsView{
			TotalJobs:       stats.TotalJobs,
			Groups:          stats.Groups,
			DuplicateGroups: stats.DuplicateGroups,
			Duplicates:      stats.Duplicates,
			Ambiguous:       stats.Ambiguous,
		}
		for _, g := range stats.TopGroups {
			view.TopGroups = append(view.TopGroups, groupRow{Key: g.Key, Jobs: len(g.Jobs)})
		}
		return renderStructured(out, format, view)
	}

	fmt.Fprintf(out, "Jobs:             %d\n", stats.TotalJobs)
	fmt.Fprintf(out, "Groups:           %d\n", stats.Groups)
	fmt.Fprintf(out, "Duplicate groups: %d\n", stats.DuplicateGroups)
	fmt.Fprintf(out, "Redundant jobs:   %d\n", stats.Duplicates)
	fmt.Fprintf(out, "Ambiguous jobs:   %d\n", stats.Ambiguous)

	if len(stats.TopGroups) > 0 {
		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Group", "Records"})
		for _, g := range stats.TopGroups {
			t.AppendRow(table.Row{g.Key, len(g.Jobs)})
		}
		t.Render()
	}
	return nil
}
