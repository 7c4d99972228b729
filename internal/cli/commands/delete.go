package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lineforge/lineforge/internal/cli/config"
	"github.com/lineforge/lineforge/pkg/core"
)

// DeleteOptions holds options for the delete command.
type DeleteOptions struct {
	Namespace string
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand() *cobra.Command {
	opts := &DeleteOptions{}

	cmd := &cobra.Command{
		Use:   "delete <dataset>",
		Short: "Delete a dataset from the lineage store",
		Long: `Remove a dataset record from the lineage store. Deleting a dataset that
does not exist succeeds, so the command is safe to re-run.`,
		Example: `  # Delete from the root dataset namespace
  lineforge delete analytics.orders

  # Delete from another namespace
  lineforge delete orders --dataset-namespace s3://lake/raw`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Namespace, "dataset-namespace", "", "Dataset namespace (default: root namespace)")

	return cmd
}

func runDelete(cmd *cobra.Command, name string, opts *DeleteOptions) error {
	cfg := getConfig()
	logger := config.GetLogger(cmd.Context())

	ns := opts.Namespace
	if ns == "" {
		ns = cfg.RootNamespace
	}
	id := core.DatasetID{Namespace: ns, Name: name}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	if err := client.DeleteDataset(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted dataset %s\n", id.Key())
	return nil
}
