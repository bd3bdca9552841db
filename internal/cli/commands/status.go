package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/geovector-labs/aedesmap/internal/pipeline"
)

// StatusOptions holds options for the status command.
type StatusOptions struct {
	Limit int
}

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	opts := &StatusOptions{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs and the latest run's stages",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			runs, err := c.Store.ListRuns(opts.Limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs yet. Start with: aedesmap run")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Run", "Region", "Status", "Started", "Error"})
			for _, run := range runs {
				t.AppendRow(table.Row{
					run.ID, run.Region, run.Status,
					run.StartedAt.Format("2006-01-02 15:04:05"), run.Error,
				})
			}
			t.Render()

			latest := runs[0]
			stageRuns, err := c.Store.ListStageRuns(latest.ID)
			if err != nil {
				return err
			}
			if len(stageRuns) == 0 {
				return nil
			}

			fmt.Fprintf(out, "\nStages of run %s:\n", latest.ID)
			st := table.NewWriter()
			st.SetOutputMirror(out)
			st.SetStyle(table.StyleLight)
			st.AppendHeader(table.Row{"Stage", "Status", "Started", "Error"})
			for _, sr := range stageRuns {
				st.AppendRow(table.Row{
					sr.Stage, sr.Status,
					sr.StartedAt.Format("15:04:05"), sr.Error,
				})
			}
			st.Render()

			arts, err := c.Store.ListArtifacts(latest.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\n%d artifact(s) in the run manifest\n", len(arts))

			if dec, err := c.Store.GetDecision(latest.ID, pipeline.CheckpointCandidate); err == nil && dec != nil {
				fmt.Fprintf(out, "candidate decision: %s\n", dec.Choice)
			}
			if dec, err := c.Store.GetDecision(latest.ID, pipeline.CheckpointThreshold); err == nil && dec != nil {
				fmt.Fprintf(out, "threshold decision: %s\n", dec.Choice)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "Number of runs to list")
	return cmd
}
