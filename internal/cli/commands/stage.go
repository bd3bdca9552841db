package commands

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/geovector-labs/aedesmap/internal/pipeline"
	"github.com/geovector-labs/aedesmap/internal/state"
)

// stageCommand builds a thin command that runs one pipeline stage inside
// the latest run, or a fresh run when none exists yet.
func stageCommand(use, short, long string, stage string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()
			return runStages(cmd, c, pipeline.Decisions{}, stage)
		},
	}
}

// runStages executes the selected stages, attaching to the latest run when
// one exists so earlier artifacts stay in scope.
func runStages(cmd *cobra.Command, c *CommandContext, dec pipeline.Decisions, stages ...string) error {
	r, err := c.runner(dec)
	if err != nil {
		return err
	}

	latest, err := c.Store.GetLatestRun(c.Cfg.Region.Name)
	if err != nil {
		return err
	}

	var res *pipeline.Result
	if latest == nil {
		res, err = r.Execute(cmd.Context(), stages...)
	} else {
		res, err = r.Attach(cmd.Context(), latest.ID, stages...)
	}
	printResult(cmd, res)
	return err
}

// printResult summarizes stage outcomes and, at a checkpoint, tells the
// operator what to do next.
func printResult(cmd *cobra.Command, res *pipeline.Result) {
	if res == nil {
		return
	}
	out := cmd.OutOrStdout()

	names := make([]string, 0, len(res.Statuses))
	for name := range res.Statuses {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-12s %s\n", name, res.Statuses[name])
	}
	fmt.Fprintf(out, "run %s: %s\n", res.Run.ID, res.Run.Status)

	ws := ""
	if cfg := configFrom(cmd); cfg != nil {
		ws = cfg.Workspace
	}
	switch res.HaltedAt {
	case pipeline.StageCalibrate:
		fmt.Fprintf(out, "\nReview %s, set 'chosen' to a candidate id, then run:\n  aedesmap finalize --decision %s\n",
			filepath.Join(ws, "candidates.yaml"), filepath.Join(ws, "candidates.yaml"))
	case pipeline.StageValidate:
		fmt.Fprintf(out, "\nReview %s, set 'chosen_rule' to a threshold rule, then run:\n  aedesmap render --decision %s\n",
			filepath.Join(ws, "thresholds.yaml"), filepath.Join(ws, "thresholds.yaml"))
	}
}

// requireRunFor checks that a decision's run is the one the store knows.
func requireRunFor(c *CommandContext, runID string) (*state.Run, error) {
	run, err := c.Store.GetRun(runID)
	if err != nil {
		return nil, fmt.Errorf("decision references unknown run %s: %w", runID, err)
	}
	return run, nil
}
