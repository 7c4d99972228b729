package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/lineforge/lineforge/internal/cli/config"
	"github.com/lineforge/lineforge/internal/marquez"
)

// GraphOptions holds options for the graph command.
type GraphOptions struct {
	Depth     int
	Summarize bool
}

// NewGraphCommand creates the graph command.
func NewGraphCommand() *cobra.Command {
	opts := &GraphOptions{}

	cmd := &cobra.Command{
		Use:   "graph <node-id>",
		Short: "Fetch the lineage graph around a node",
		Long: `Fetch the lineage graph around a dataset or job node and print it.

Node ids follow the store's convention, e.g. "dataset:warehouse:orders"
or "job:default:orders". With --summarize the raw graph is collapsed to
datasets, jobs, and dataset-to-dataset edges.`,
		Example: `  # Raw graph as JSON
  lineforge graph dataset:warehouse:orders --output json

  # Collapsed view
  lineforge graph dataset:warehouse:orders --summarize`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGraph(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "Traversal depth (0 = store default)")
	cmd.Flags().BoolVar(&opts.Summarize, "summarize", false, "Collapse the graph to datasets, jobs, and edges")

	return cmd
}

func runGraph(cmd *cobra.Command, nodeID string, opts *GraphOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())
	out := cmd.OutOrStdout()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	resp, err := client.LineageGraph(cmd.Context(), nodeID, opts.Depth)
	if err != nil {
		return err
	}

	if !opts.Summarize {
		format := cfg.Output
		if format == "text" {
			format = "json"
		}
		return renderStructured(out, format, resp)
	}

	sum := marquez.Summarize(resp)
	if cfg.Output == "json" || cfg.Output == "yaml" {
		return renderStructured(out, cfg.Output, sum)
	}
	renderGraphSummary(cmd, sum)
	return nil
}

func renderGraphSummary(cmd *cobra.Command, sum *marquez.GraphSummary) {
	out := cmd.OutOrStdout()

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Dataset", "Fields"})
	for _, ds := range sum.Datasets {
		t.AppendRow(table.Row{ds.Name, len(ds.Fields)})
	}
	t.Render()

	t = table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Job", "State", "Inputs", "Outputs"})
	for _, job := range sum.Jobs {
		t.AppendRow(table.Row{job.Name, job.State, len(job.Inputs), len(job.Outputs)})
	}
	t.Render()

	for _, e := range sum.Edges {
		fmt.Fprintf(out, "%s -> %s (%s)\n", e.From, e.To, e.Job)
	}
	fmt.Fprintf(out, "\n%d datasets, %d jobs, %d edges\n",
		len(sum.Datasets), len(sum.Jobs), len(sum.Edges))
}
