package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lineforge/lineforge/internal/state"
)

// RunsOptions holds options for the runs command.
type RunsOptions struct {
	Limit int
	Run   string
}

// NewRunsCommand creates the runs command.
func NewRunsCommand() *cobra.Command {
	opts := &RunsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the local synchronization history",
		Long: `List past synchronization passes recorded in the local history database,
or show the per-model outcomes of one pass.`,
		Example: `  # Recent passes
  lineforge runs

  # Per-model detail of one pass
  lineforge runs --run 6f1e...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRuns(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "Runs to list")
	cmd.Flags().StringVar(&opts.Run, "run", "", "Show the models of one run id")

	return cmd
}

func runRuns(cmd *cobra.Command, opts *RunsOptions) error {
	cfg := getConfig()
	out := cmd.OutOrStdout()

	if cfg.StatePath == "" {
		return fmt.Errorf("run history is disabled (state_path is empty)")
	}
	if _, err := os.Stat(cfg.StatePath); os.IsNotExist(err) {
		fmt.Fprintln(out, "No run history yet.")
		return nil
	}

	store := state.NewStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return err
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		return err
	}

	if opts.Run != "" {
		return renderRunDetail(cmd, store, opts.Run)
	}

	runs, err := store.ListRuns(opts.Limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No run history yet.")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Run", "Namespace", "Started", "Status", "Synced", "Failed"})
	for _, run := range runs {
		t.AppendRow(table.Row{
			run.ID,
			run.Namespace,
			run.StartedAt.Format("2006-01-02 15:04:05"),
			run.Status,
			run.ModelsSynced,
			run.ModelsFailed,
		})
	}
	t.Render()
	return nil
}

func renderRunDetail(cmd *cobra.Command, store *state.Store, runID string) error {
	out := cmd.OutOrStdout()

	run, err := store.GetRun(runID)
	if err != nil {
		return err
	}
	syncs, err := store.ListModelSyncs(run.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s (%s, started %s)\n\n",
		run.ID, run.Status, run.StartedAt.Format("2006-01-02 15:04:05"))

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Dataset", "Edges", "Warnings", "Status"})
	for _, m := range syncs {
		status := m.Status
		if m.Error != "" {
			status = status + ": " + m.Error
		}
		t.AppendRow(table.Row{m.Model, m.Dataset, m.Edges, m.Warnings, status})
	}
	t.Render()
	return nil
}
