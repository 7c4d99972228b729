package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lineforge/lineforge/internal/cli/config"
	"github.com/lineforge/lineforge/internal/lineage"
	"github.com/lineforge/lineforge/internal/manifest"
	"github.com/lineforge/lineforge/internal/marquez"
	"github.com/lineforge/lineforge/internal/openlineage"
	"github.com/lineforge/lineforge/internal/state"
)

// SyncOptions holds options for the sync command.
type SyncOptions struct {
	Model     string
	DryRun    bool
	RunID     string
	NoHistory bool
}

// NewSyncCommand creates the sync command.
func NewSyncCommand() *cobra.Command {
	opts := &SyncOptions{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Infer column lineage and push it to the lineage store",
		Long: `Load the compiled manifest, infer column-level lineage for every model,
and publish it to the lineage store as OpenLineage events.

Datasets are registered before events so the store can attach schemas,
and each model gets a fresh run appended to its job history.`,
		Example: `  # Sync every model
  lineforge sync

  # Sync one model
  lineforge sync --model orders

  # Show the events without contacting the store
  lineforge sync --dry-run --output json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Model, "model", "m", "", "Sync only the named model")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Build events but do not contact the store")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "Use a fixed run id instead of generating one per model")
	cmd.Flags().BoolVar(&opts.NoHistory, "no-history", false, "Skip recording the pass in the local history database")

	return cmd
}

func runSync(cmd *cobra.Command, opts *SyncOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	m, err := manifest.Load(cfg.Manifest, logger)
	if err != nil {
		return err
	}

	graph, err := lineage.NewBuilder(m, logger).Build()
	if err != nil {
		return err
	}

	var client *marquez.Client
	if !opts.DryRun {
		client, err = newClient(cfg, logger)
		if err != nil {
			return err
		}
	}

	sync := marquez.NewSynchronizer(client, openlineage.Config{
		Producer:      cfg.Producer,
		RootNamespace: cfg.RootNamespace,
	}, m, marquez.SyncConfig{
		Namespace:           cfg.Namespace,
		Owner:               cfg.Owner,
		SourceName:          cfg.SourceName,
		SourceType:          cfg.SourceType,
		SourceConnectionURL: cfg.SourceURL,
		RunID:               opts.RunID,
		Concurrency:         cfg.Concurrency,
		DryRun:              opts.DryRun,
	}, logger)

	var summary *marquez.Summary
	if opts.Model != "" {
		summary, err = sync.SyncModel(cmd.Context(), graph, opts.Model)
	} else {
		summary, err = sync.SyncAll(cmd.Context(), graph)
	}
	if err != nil {
		return err
	}

	if !opts.DryRun && !opts.NoHistory && cfg.StatePath != "" {
		if err := recordHistory(cfg, summary); err != nil {
			logger.Warn("failed to record run history", "error", err)
		}
	}

	if err := renderSummary(cmd, cfg.Output, summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d models failed to sync", summary.Failed, len(summary.Results))
	}
	return nil
}

// recordHistory persists the pass into the local SQLite history.
func recordHistory(cfg *config.Config, summary *marquez.Summary) error {
	if dir := filepath.Dir(cfg.StatePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	store := state.NewStore()
	if err := store.Open(cfg.StatePath); err != nil {
		return err
	}
	defer store.Close()
	if err := store.InitSchema(); err != nil {
		return err
	}

	run, err := store.BeginRun(cfg.Namespace, summary.DryRun)
	if err != nil {
		return err
	}
	for _, r := range summary.Results {
		ms := state.ModelSync{
			Model:    r.Model,
			Dataset:  r.Dataset,
			RunUUID:  r.RunID,
			Edges:    r.Edges,
			Warnings: len(r.Warnings),
			Status:   "synced",
		}
		if r.Err != nil {
			ms.Status = "failed"
			ms.Error = r.Err.Error()
		}
		if err := store.RecordModel(run.ID, ms); err != nil {
			return err
		}
	}

	status := state.RunStatusCompleted
	if summary.Failed > 0 {
		status = state.RunStatusFailed
	}
	return store.CompleteRun(run.ID, status, summary.Synced, summary.Failed, "")
}

// syncResult is the serializable view of one model's outcome.
type syncResult struct {
	Model    string   `json:"model" yaml:"model"`
	Dataset  string   `json:"dataset" yaml:"dataset"`
	RunID    string   `json:"runId" yaml:"runId"`
	Edges    int      `json:"edges" yaml:"edges"`
	Status   string   `json:"status" yaml:"status"`
	Warnings []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Error    string   `json:"error,omitempty" yaml:"error,omitempty"`
	Event    any      `json:"event,omitempty" yaml:"event,omitempty"`
}

func renderSummary(cmd *cobra.Command, format string, summary *marquez.Summary) error {
	out := cmd.OutOrStdout()

	if format == "json" || format == "yaml" {
		results := make([]syncResult, 0, len(summary.Results))
		for _, r := range summary.Results {
			sr := syncResult{
				Model:    r.Model,
				Dataset:  r.Dataset,
				RunID:    r.RunID,
				Edges:    r.Edges,
				Status:   "synced",
				Warnings: r.Warnings,
			}
			if r.Err != nil {
				sr.Status = "failed"
				sr.Error = r.Err.Error()
			}
			if summary.DryRun {
				sr.Status = "planned"
				sr.Event = r.Event
			}
			results = append(results, sr)
		}
		return renderStructured(out, format, results)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Model", "Dataset", "Run ID", "Edges", "Warnings", "Status"})
	for _, r := range summary.Results {
		status := "synced"
		if summary.DryRun {
			status = "planned"
		}
		if r.Err != nil {
			status = "failed: " + r.Err.Error()
		}
		t.AppendRow(table.Row{r.Model, r.Dataset, r.RunID, r.Edges, len(r.Warnings), status})
	}
	t.Render()

	for _, r := range summary.Results {
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "warning: %s: %s\n", r.Model, w)
		}
	}
	fmt.Fprintf(out, "\n%d synced, %d failed, %d warnings\n", summary.Synced, summary.Failed, summary.Warnings)
	return nil
}
