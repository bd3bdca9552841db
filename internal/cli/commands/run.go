package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/geovector-labs/aedesmap/internal/pipeline"
)

// RunOptions holds options for the run command.
type RunOptions struct {
	Select string
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	opts := &RunOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline until the first checkpoint",
		Long: `Start a fresh run and execute stages in dependency order. The run halts
at the model-selection checkpoint; continue it with finalize and render
after resolving each decision file.`,
		Example: `  # Run everything up to the first checkpoint
  aedesmap run

  # Run a subset of stages
  aedesmap run --select ingest,scene`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			r, err := c.runner(pipeline.Decisions{})
			if err != nil {
				return err
			}

			var only []string
			if opts.Select != "" {
				for _, name := range strings.Split(opts.Select, ",") {
					only = append(only, strings.TrimSpace(name))
				}
			}
			res, err := r.Execute(cmd.Context(), only...)
			printResult(cmd, res)
			return err
		},
	}
	cmd.Flags().StringVarP(&opts.Select, "select", "s", "", "Comma-separated list of stages to run")
	return cmd
}
