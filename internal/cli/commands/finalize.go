package commands

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/geovector-labs/aedesmap/internal/pipeline"
)

// NewFinalizeCommand creates the finalize command.
func NewFinalizeCommand() *cobra.Command {
	var decisionPath string
	cmd := &cobra.Command{
		Use:   "finalize",
		Short: "Resume a halted run with the chosen candidate model",
		Long: `Resolve the operator's model choice from the candidate decision file,
then resume the run: prune correlated and uninformative predictors, fit
the bootstrap ensemble, and project mean and deviation suitability onto
the full region. The run halts again at the threshold checkpoint.`,
		Example: `  # After editing 'chosen' in the decision file
  aedesmap finalize --decision workspace/candidates.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if decisionPath == "" {
				decisionPath = filepath.Join(c.Cfg.Workspace, "candidates.yaml")
			}
			d, err := pipeline.LoadCandidateDecision(decisionPath)
			if err != nil {
				return err
			}
			if err := pipeline.ResolveCandidate(c.Store, d, decisionPath); err != nil {
				return err
			}
			if _, err := requireRunFor(c, d.RunID); err != nil {
				return err
			}

			r, err := c.runner(pipeline.Decisions{Candidate: d.Chosen})
			if err != nil {
				return err
			}
			res, err := r.Resume(cmd.Context(), d.RunID)
			printResult(cmd, res)
			return err
		},
	}
	cmd.Flags().StringVar(&decisionPath, "decision", "", "Candidate decision file (default: <workspace>/candidates.yaml)")
	return cmd
}

// NewRenderCommand creates the render command.
func NewRenderCommand() *cobra.Command {
	var decisionPath string
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Resume a halted run with the chosen threshold rule",
		Long: `Resolve the operator's threshold choice from the decision file, then
resume the run to produce the cartographic outputs: the binary presence
map, the classified suitability map, and per-neighborhood mean
suitability.`,
		Example: `  # After editing 'chosen_rule' in the decision file
  aedesmap render --decision workspace/thresholds.yaml`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if decisionPath == "" {
				decisionPath = filepath.Join(c.Cfg.Workspace, "thresholds.yaml")
			}
			d, err := pipeline.LoadThresholdDecision(decisionPath)
			if err != nil {
				return err
			}
			threshold, err := pipeline.ResolveThreshold(c.Store, d, decisionPath)
			if err != nil {
				return err
			}
			if _, err := requireRunFor(c, d.RunID); err != nil {
				return err
			}

			r, err := c.runner(pipeline.Decisions{ThresholdRule: d.ChosenRule, Threshold: threshold})
			if err != nil {
				return err
			}
			res, err := r.Resume(cmd.Context(), d.RunID)
			printResult(cmd, res)
			return err
		},
	}
	cmd.Flags().StringVar(&decisionPath, "decision", "", "Threshold decision file (default: <workspace>/thresholds.yaml)")
	return cmd
}
